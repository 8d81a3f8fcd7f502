package models

import (
	"testing"
	"time"
)

func TestQuestionTimeout(t *testing.T) {
	tests := []struct {
		name    string
		seconds int
		want    time.Duration
	}{
		{"configured", 9, 9 * time.Second},
		{"unset falls back to default", 0, 6 * time.Second},
		{"negative falls back to default", -3, 6 * time.Second},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := &Class{SecondsPerQuestion: tt.seconds}
			if got := c.QuestionTimeout(); got != tt.want {
				t.Errorf("QuestionTimeout() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestYearFromLabel(t *testing.T) {
	tests := []struct {
		label string
		want  int
	}{
		{"M4", 4},
		{"R6", 6},
		{"Y1", 1},
		{"Maple", 0},
		{"", 0},
	}

	for _, tt := range tests {
		if got := YearFromLabel(tt.label); got != tt.want {
			t.Errorf("YearFromLabel(%q) = %d, want %d", tt.label, got, tt.want)
		}
	}
}
