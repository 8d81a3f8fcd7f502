package auth

import (
	"errors"
	"testing"

	"github.com/bmtt-school/times-tables-service/internal/models"
)

func TestSessionCodecRoundTrip(t *testing.T) {
	codec := NewSessionCodec("a-long-enough-test-secret", false)

	t.Run("Teacher", func(t *testing.T) {
		token, err := codec.IssueTeacher(&models.Teacher{ID: 7, Role: models.RoleAdmin})
		if err != nil {
			t.Fatalf("IssueTeacher failed: %v", err)
		}

		session, err := codec.Parse(token)
		if err != nil {
			t.Fatalf("Parse failed: %v", err)
		}
		if session.SubjectID != 7 {
			t.Errorf("Expected subject 7, got %d", session.SubjectID)
		}
		if session.Role != models.RoleAdmin {
			t.Errorf("Expected role admin, got %s", session.Role)
		}
		if !session.IsStaff() {
			t.Error("Expected admin session to count as staff")
		}
	})

	t.Run("Student", func(t *testing.T) {
		token, err := codec.IssueStudent(&models.Student{ID: 42, ClassID: 3})
		if err != nil {
			t.Fatalf("IssueStudent failed: %v", err)
		}

		session, err := codec.Parse(token)
		if err != nil {
			t.Fatalf("Parse failed: %v", err)
		}
		if session.Role != models.RoleStudent {
			t.Errorf("Expected role student, got %s", session.Role)
		}
		if session.ClassID != 3 {
			t.Errorf("Expected class 3, got %d", session.ClassID)
		}
		if session.IsStaff() {
			t.Error("Student session must not count as staff")
		}
	})
}

func TestSessionCodecRejectsForeignSignature(t *testing.T) {
	issuer := NewSessionCodec("issuer-secret", false)
	verifier := NewSessionCodec("different-secret", false)

	token, err := issuer.IssueTeacher(&models.Teacher{ID: 1, Role: models.RoleTeacher})
	if err != nil {
		t.Fatalf("IssueTeacher failed: %v", err)
	}

	if _, err := verifier.Parse(token); !errors.Is(err, ErrInvalidSession) {
		t.Errorf("Expected ErrInvalidSession, got %v", err)
	}
}

func TestSessionCodecRejectsGarbage(t *testing.T) {
	codec := NewSessionCodec("a-long-enough-test-secret", false)
	if _, err := codec.Parse("not-a-token"); !errors.Is(err, ErrInvalidSession) {
		t.Errorf("Expected ErrInvalidSession, got %v", err)
	}
}
