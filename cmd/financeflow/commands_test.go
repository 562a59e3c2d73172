package main

import (
	"bufio"
	"errors"
	"strings"
	"testing"

	"financeflow/internal/core"
)

func withInput(t *testing.T, input string) {
	t.Helper()
	prev := stdin
	stdin = bufio.NewReader(strings.NewReader(input))
	t.Cleanup(func() { stdin = prev })
}

func TestReadLineKeepsBufferedInput(t *testing.T) {
	withInput(t, "me@example.com\nsecret\n")

	if got := readLine("Email: "); got != "me@example.com" {
		t.Fatalf("first line = %q", got)
	}
	if got := readLine("Password: "); got != "secret" {
		t.Fatalf("second line = %q", got)
	}
	if got := readLine("More: "); got != "" {
		t.Fatalf("expected empty line at EOF, got %q", got)
	}
}

func TestConfirmAnswersInSequence(t *testing.T) {
	withInput(t, "y\nyes\nn\n\n")

	ask := confirm(false)
	want := []bool{true, true, false, false}
	for i, w := range want {
		if got := ask("Delete?"); got != w {
			t.Fatalf("answer %d = %v, want %v", i, got, w)
		}
	}

	if !confirm(true)("Delete?") {
		t.Fatalf("-y must confirm without reading input")
	}
}

func TestReportOptions(t *testing.T) {
	cases := []struct {
		name           string
		period         string
		start, end     string
		want           core.Period
		wantRange      bool
		wantErr        bool
		wantPartialErr bool
	}{
		{name: "remembered period", want: ""},
		{name: "year", period: "year", want: core.PeriodYear},
		{name: "range implies custom", start: "2024-01-01", end: "2024-01-31", want: core.PeriodCustom, wantRange: true},
		{name: "explicit custom", period: "custom", start: "2024-01-01", end: "2024-01-31", want: core.PeriodCustom, wantRange: true},
		{name: "start only", start: "2024-01-01", wantErr: true, wantPartialErr: true},
		{name: "end only", end: "2024-01-31", wantErr: true, wantPartialErr: true},
		{name: "range with month", period: "month", start: "2024-01-01", end: "2024-01-31", wantErr: true},
		{name: "reversed range", start: "2024-02-01", end: "2024-01-01", wantErr: true},
		{name: "bad date", start: "01/01/2024", end: "2024-01-31", wantErr: true},
		{name: "bad period", period: "week", wantErr: true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			p, rng, err := reportOptions(tc.period, tc.start, tc.end)
			if tc.wantErr {
				if err == nil {
					t.Fatalf("expected error")
				}
				if tc.wantPartialErr && !errors.Is(err, errPartialRange) {
					t.Fatalf("expected partial range error, got %v", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if p != tc.want || (rng != nil) != tc.wantRange {
				t.Fatalf("got period %q range %v", p, rng)
			}
			if rng != nil && (rng.StartDate.String() != tc.start || rng.EndDate.String() != tc.end) {
				t.Fatalf("unexpected range %s..%s", rng.StartDate, rng.EndDate)
			}
		})
	}
}
