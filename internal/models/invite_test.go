package models

import (
	"testing"
	"time"
)

func TestInviteUsable(t *testing.T) {
	now := time.Now()
	accepted := now.Add(-time.Hour)

	tests := []struct {
		name   string
		invite TeacherInvite
		want   bool
	}{
		{"fresh invite", TeacherInvite{ExpiresAt: now.Add(time.Hour)}, true},
		{"expired", TeacherInvite{ExpiresAt: now.Add(-time.Minute)}, false},
		{"already accepted", TeacherInvite{ExpiresAt: now.Add(time.Hour), AcceptedAt: &accepted}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.invite.Usable(now); got != tt.want {
				t.Errorf("Usable() = %v, want %v", got, tt.want)
			}
		})
	}
}
