package sinks

import "testing"

type recorder struct {
	logs     []string
	fatals   []string
	progress []int
}

func (r *recorder) Log(level Level, message string) { r.logs = append(r.logs, level.String()+":"+message) }
func (r *recorder) Fatal(message string)             { r.fatals = append(r.fatals, message) }
func (r *recorder) Progress(phase string, step, nmax int) {
	r.progress = append(r.progress, step)
}

func TestMultiFansOutToAllSinks(t *testing.T) {
	a, b := &recorder{}, &recorder{}
	m := Multi{a, b}

	m.Log(Warn, "hello")
	m.Fatal("boom")
	m.Progress("solving", 1, 10)

	for _, r := range []*recorder{a, b} {
		if len(r.logs) != 1 || r.logs[0] != "WARN:hello" {
			t.Errorf("got logs %v", r.logs)
		}
		if len(r.fatals) != 1 || r.fatals[0] != "boom" {
			t.Errorf("got fatals %v", r.fatals)
		}
		if len(r.progress) != 1 || r.progress[0] != 1 {
			t.Errorf("got progress %v", r.progress)
		}
	}
}

func TestDiscardDropsEverything(t *testing.T) {
	Discard.Log(Info, "ignored")
	Discard.Fatal("ignored")
	Discard.Progress("phase", 1, 1)
}

func TestLevelString(t *testing.T) {
	cases := map[Level]string{Trace: "TRACE", Debug: "DEBUG", Info: "INFO", Warn: "WARN", Error: "ERROR", Level(99): "UNKNOWN"}
	for l, want := range cases {
		if got := l.String(); got != want {
			t.Errorf("Level(%d).String() = %q, want %q", l, got, want)
		}
	}
}
