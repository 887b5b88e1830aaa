package main

import (
	"strings"
	"testing"

	"github.com/fatih/color"
)

func init() {
	color.NoColor = true
}

func TestPrinterFormat(t *testing.T) {
	tests := []struct {
		name string
		p    printer
		in   string
		want string
	}{
		{
			name: "acquired",
			in:   `{"kind":"target_acquired","time":"2025-01-02T03:04:05Z","target":{"identifier":"buddha","confidence":0.91}}`,
			want: "target_acquired buddha (91%)",
		},
		{
			name: "countdown",
			in:   `{"kind":"countdown_tick","time":"2025-01-02T03:04:05Z","remaining":3}`,
			want: "countdown_tick 3",
		},
		{
			name: "mode",
			in:   `{"kind":"mode_changed","time":"2025-01-02T03:04:05Z","mode":"reactive"}`,
			want: "mode_changed → reactive",
		},
		{
			name: "failure",
			in:   `{"kind":"inference_failed","time":"2025-01-02T03:04:05Z","error":"boom"}`,
			want: "inference_failed boom",
		},
		{
			name: "observations hidden",
			in:   `{"kind":"observations_updated","time":"2025-01-02T03:04:05Z"}`,
			want: "",
		},
		{
			name: "observations shown",
			p:    printer{showObs: true},
			in:   `{"kind":"observations_updated","time":"2025-01-02T03:04:05Z","seq":7,"overlay":{"labels":["buddha (91%)"]}}`,
			want: "observations_updated #7 buddha (91%)",
		},
		{
			name: "status",
			p:    printer{status: true},
			in:   `{"mode":"countdown","detection":"locked","counter":2,"behavior":"counting_down","remaining":4}`,
			want: "mode=countdown detection=locked counter=2 behavior=counting_down remaining=4 dropped=0",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := tt.p.format([]byte(tt.in))
			if tt.want == "" {
				if got != "" {
					t.Errorf("format() = %q, want empty", got)
				}
				return
			}
			if !strings.HasSuffix(got, tt.want) {
				t.Errorf("format() = %q, want suffix %q", got, tt.want)
			}
		})
	}
}
