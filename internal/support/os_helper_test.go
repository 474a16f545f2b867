package support

import (
	"errors"
	"testing"
)

func TestGetEnv(t *testing.T) {
	t.Setenv("NOPHISH_TEST_VALUE", "configured")

	if got := GetEnv("NOPHISH_TEST_VALUE", "fallback"); got != "configured" {
		t.Fatalf("GetEnv returned %q, want configured", got)
	}
	if got := GetEnv("NOPHISH_TEST_MISSING", "fallback"); got != "fallback" {
		t.Fatalf("GetEnv returned %q, want fallback", got)
	}
}

func TestGetEnvInt(t *testing.T) {
	t.Setenv("NOPHISH_TEST_INT", " 42 ")
	t.Setenv("NOPHISH_TEST_BAD_INT", "forty")

	if got := GetEnvInt("NOPHISH_TEST_INT", 7); got != 42 {
		t.Fatalf("GetEnvInt returned %d, want 42", got)
	}
	if got := GetEnvInt("NOPHISH_TEST_BAD_INT", 7); got != 7 {
		t.Fatalf("GetEnvInt returned %d for invalid value, want 7", got)
	}
	if got := GetEnvInt("NOPHISH_TEST_MISSING", 7); got != 7 {
		t.Fatalf("GetEnvInt returned %d for missing value, want 7", got)
	}
}

func TestGetEnvBool(t *testing.T) {
	t.Setenv("NOPHISH_TEST_BOOL", "true")
	t.Setenv("NOPHISH_TEST_BAD_BOOL", "maybe")

	if !GetEnvBool("NOPHISH_TEST_BOOL", false) {
		t.Fatal("GetEnvBool returned false, want true")
	}
	if GetEnvBool("NOPHISH_TEST_BAD_BOOL", false) {
		t.Fatal("GetEnvBool returned true for invalid value")
	}
}

func TestDialRedisWithoutURL(t *testing.T) {
	if _, err := dialRedis(""); !errors.Is(err, ErrRedisDisabled) {
		t.Fatalf("dialRedis(\"\") error = %v, want ErrRedisDisabled", err)
	}
	if _, err := dialRedis("not a url"); err == nil || errors.Is(err, ErrRedisDisabled) {
		t.Fatalf("dialRedis with invalid url returned %v", err)
	}
}
