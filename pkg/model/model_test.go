package model

import (
	"strings"
	"testing"
)

func TestValidateNickname(t *testing.T) {
	tcases := map[string]struct {
		name      string
		expectErr bool
	}{
		"simple":        {name: "alice", expectErr: false},
		"unicode":       {name: "小月", expectErr: false},
		"with_space":    {name: "John Doe", expectErr: false},
		"empty":         {name: "", expectErr: true},
		"max_length":    {name: strings.Repeat("a", MaxNicknameLength), expectErr: false},
		"one_over_max":  {name: strings.Repeat("a", MaxNicknameLength+1), expectErr: true},
		"way_over_max":  {name: strings.Repeat("x", 200), expectErr: true},
	}

	for name, tc := range tcases {
		t.Run(name, func(t *testing.T) {
			err := ValidateNickname(tc.name)
			if tc.expectErr && err == nil {
				t.Fatalf("ValidateNickname(%q): expected error, got nil", tc.name)
			}
			if !tc.expectErr && err != nil {
				t.Fatalf("ValidateNickname(%q): unexpected error: %v", tc.name, err)
			}
		})
	}
}

func TestValidateSerial(t *testing.T) {
	tcases := map[string]struct {
		serial    string
		expectErr bool
	}{
		"valid":         {serial: "123456", expectErr: false},
		"leading_zero":  {serial: "000000", expectErr: false},
		"too_short":     {serial: "12345", expectErr: true},
		"too_long":      {serial: "1234567", expectErr: true},
		"letters":       {serial: "12a456", expectErr: true},
		"empty":         {serial: "", expectErr: true},
		"unicode_digit": {serial: "12345６", expectErr: true},
	}

	for name, tc := range tcases {
		t.Run(name, func(t *testing.T) {
			err := ValidateSerial(tc.serial)
			if tc.expectErr && err == nil {
				t.Fatalf("ValidateSerial(%q): expected error, got nil", tc.serial)
			}
			if !tc.expectErr && err != nil {
				t.Fatalf("ValidateSerial(%q): unexpected error: %v", tc.serial, err)
			}
		})
	}
}

func TestMessageValidate(t *testing.T) {
	tcases := map[string]struct {
		msg       Message
		expectErr bool
	}{
		"text":          {msg: Message{Kind: KindText, Content: "hi"}, expectErr: false},
		"image_url":     {msg: Message{Kind: KindImage, Content: "/files/images/a.png"}, expectErr: false},
		"unknown_kind":  {msg: Message{Kind: "sticker", Content: "x"}, expectErr: true},
		"empty_content": {msg: Message{Kind: KindText, Content: "   "}, expectErr: true},
		"oversized":     {msg: Message{Kind: KindText, Content: strings.Repeat("a", MessageMaxContentLength+1)}, expectErr: true},
	}

	for name, tc := range tcases {
		t.Run(name, func(t *testing.T) {
			err := tc.msg.Validate()
			if tc.expectErr && err == nil {
				t.Fatal("Validate: expected error, got nil")
			}
			if !tc.expectErr && err != nil {
				t.Fatalf("Validate: unexpected error: %v", err)
			}
		})
	}
}
