package user

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestToResponse(t *testing.T) {
	classNumber := 9
	examType := "ОГЭ"
	u := &User{
		UserID:      uuid.MustParse("0b7c4a52-3f0e-4a45-9c1f-6f7d8a9b0c1d"),
		Name:        "Bob",
		Surname:     "Sponge",
		ClassNumber: &classNumber,
		ExamType:    &examType,
		Email:       "bob2@x.com",
		IsActive:    true,
	}

	body, err := json.Marshal(ToResponse(u))
	require.NoError(t, err)

	assert.JSONEq(t, `{
		"user_id": "0b7c4a52-3f0e-4a45-9c1f-6f7d8a9b0c1d",
		"name": "Bob",
		"surname": "Sponge",
		"class_number": 9,
		"exam_type": "ОГЭ",
		"email": "bob2@x.com",
		"telegram": null,
		"is_active": true
	}`, string(body))
}

func TestNewUserRegisteredEvent(t *testing.T) {
	u := &User{
		UserID:  uuid.New(),
		Name:    "Bob",
		Surname: "Sponge",
		Email:   "bob2@x.com",
	}
	at := time.Date(2025, 3, 1, 12, 0, 0, 0, time.FixedZone("MSK", 3*60*60))

	event := NewUserRegisteredEvent(u, at)

	assert.Equal(t, u.UserID, event.UserID)
	assert.Equal(t, "bob2@x.com", event.Email)
	assert.Equal(t, time.UTC, event.RegisteredAt.Location())
	assert.True(t, at.Equal(event.RegisteredAt))
}
