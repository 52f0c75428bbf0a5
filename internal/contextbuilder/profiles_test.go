package contextbuilder

import "testing"

func TestProfileForKnownTypes(t *testing.T) {
	tests := []struct {
		outputType string
		wantMax    int
		wantTotal  int
		wantMR     bool
	}{
		{"summary", 10, 16000, false},
		{"briefing", 15, 24000, false},
		{"deep_dive", 50, 40000, true},
		{"study_guide", 20, 32000, true},
		{"visual", 5, 8000, false},
	}

	for _, tt := range tests {
		p := profileFor(tt.outputType, 0)
		if p.MaxSources != tt.wantMax || p.TotalContextChars != tt.wantTotal || p.UseMapReduce != tt.wantMR {
			t.Errorf("profileFor(%q) = %+v", tt.outputType, p)
		}
	}
}

func TestProfileForUnknownTypeFallsBack(t *testing.T) {
	p := profileFor("no_such_type", 0)
	if p != profiles["default"] {
		t.Errorf("unknown type should use the default profile, got %+v", p)
	}
}

func TestProfileForAudioScalesWithDuration(t *testing.T) {
	short := profileFor("podcast_script", 5)
	medium := profileFor("podcast_script", 15)
	long := profileFor("podcast_script", 30)

	if short.TotalContextChars != 6000 || short.Strategy != StrategyDepth {
		t.Errorf("5 minute profile = %+v", short)
	}
	if medium.TotalContextChars != 16000 || medium.Strategy != StrategyBreadth {
		t.Errorf("15 minute profile = %+v", medium)
	}
	if long.TotalContextChars != 32000 || long.Strategy != StrategyExhaustive {
		t.Errorf("30 minute profile = %+v", long)
	}

	// Without a duration the static table applies.
	static := profileFor("podcast_script", 0)
	if static.TotalContextChars != 24000 {
		t.Errorf("static podcast profile = %+v", static)
	}
}
