package calendar

import (
	"encoding/json"
	"errors"
	"testing"
	"time"
)

func TestParseClock(t *testing.T) {
	cases := []struct {
		in      string
		want    Clock
		wantErr bool
	}{
		{"00:00", 0, false},
		{"09:30", 570, false},
		{"23:59", 1439, false},
		{"24:00", 0, true},
		{"12:60", 0, true},
		{"9:00", 0, true},
		{"09-00", 0, true},
		{"ab:cd", 0, true},
		{"", 0, true},
	}
	for _, tc := range cases {
		got, err := ParseClock(tc.in)
		if (err != nil) != tc.wantErr {
			t.Fatalf("ParseClock(%q) err = %v, wantErr %v", tc.in, err, tc.wantErr)
		}
		if !tc.wantErr && got != tc.want {
			t.Fatalf("ParseClock(%q) = %d, want %d", tc.in, got, tc.want)
		}
	}
}

func TestClockJSON(t *testing.T) {
	var v struct {
		At Clock `json:"at"`
	}
	if err := json.Unmarshal([]byte(`{"at":"14:05"}`), &v); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if v.At.String() != "14:05" {
		t.Fatalf("At = %s, want 14:05", v.At)
	}
	out, err := json.Marshal(v)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if string(out) != `{"at":"14:05"}` {
		t.Fatalf("marshal = %s", out)
	}
}

func TestParseDate(t *testing.T) {
	d, err := ParseDate("2025-03-01")
	if err != nil {
		t.Fatalf("ParseDate: %v", err)
	}
	if d.Weekday() != time.Saturday || d.Location() != time.UTC {
		t.Fatalf("ParseDate = %v", d)
	}
	if _, err := ParseDate("01/03/2025"); err == nil {
		t.Fatal("expected error for non ISO date")
	}
	if _, err := ParseDate("2025-02-30"); err == nil {
		t.Fatal("expected error for impossible date")
	}
}

func TestRequireFieldsAreInvalidInput(t *testing.T) {
	_, err := RequireDate("date", "")
	if !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("RequireDate empty err = %v, want ErrInvalidInput", err)
	}
	_, err = RequireClock("time", "7pm")
	var ve *ValidationError
	if !errors.As(err, &ve) || ve.Field != "time" {
		t.Fatalf("RequireClock err = %v, want ValidationError on time", err)
	}
}

func TestDay(t *testing.T) {
	in := time.Date(2025, 3, 1, 22, 15, 0, 0, time.UTC)
	if got := Day(in); !got.Equal(MustDate("2025-03-01")) {
		t.Fatalf("Day = %v", got)
	}
}
