package cmake

import (
	"context"
	"errors"
	"testing"
)

func TestParseVersionString(t *testing.T) {
	const prefix = "cmake version "
	for _, tc := range []struct {
		input string
		want  string
		ok    bool
	}{
		{prefix + "3.0.0", "3.0.0", true},
		{prefix + "3.0.0-dirty", "3.0.0", true},
		{prefix + "3.0.0-rc1", "3.0.0", true},
		{prefix + "cmake version 3.0.0-rc1-dirty", "3.0.0", true},
		{prefix + "this.is.garbage", "", false},
		{prefix + "3.15.1", "3.15.1", true},
		{"3.15.1", "3.15.1", true},
		{prefix + "101.202.303-xxx", "101.202.303", true},
		{"101.202.303-xxx", "101.202.303", true},
		{"prefix 1 number 101.202.303-xxx", "101.202.303", true},
		{"not the right format", "", false},
	} {
		got, ok := ParseVersionString(tc.input)
		if got != tc.want || ok != tc.ok {
			t.Errorf("ParseVersionString(%q) = %q, %v, want %q, %v", tc.input, got, ok, tc.want, tc.ok)
		}
	}
}

func TestAtLeast(t *testing.T) {
	for _, tc := range []struct {
		version, min string
		want         bool
	}{
		{"3.15.1", "3.15.0", true},
		{"3.15.0", "3.15.0", true},
		{"3.14.7", "3.15.0", false},
		{"101.202.303", "3.15.0", true},
	} {
		if got := AtLeast(tc.version, tc.min); got != tc.want {
			t.Errorf("AtLeast(%q, %q) = %v, want %v", tc.version, tc.min, got, tc.want)
		}
	}
}

func TestVersionCache(t *testing.T) {
	t.Run("memoizes a resolved version", func(t *testing.T) {
		r := &fakeRunner{output: []byte("cmake version 3.22.1\n")}
		c := NewVersionCache()

		version, ok := c.Get(context.Background(), r, "cmake")
		if !ok || version != "3.22.1" {
			t.Fatalf("Get = %q, %v, want 3.22.1", version, ok)
		}
		c.Get(context.Background(), r, "cmake")
		if r.outputCalls != 1 {
			t.Errorf("cmake --version invoked %d times, want 1", r.outputCalls)
		}
	})

	t.Run("failure is sticky", func(t *testing.T) {
		r := &fakeRunner{output: []byte("not the right format\n")}
		c := NewVersionCache()

		if _, ok := c.Get(context.Background(), r, "cmake"); ok {
			t.Fatal("garbage version string resolved")
		}
		if _, ok := c.Get(context.Background(), r, "cmake"); ok {
			t.Fatal("garbage version string resolved on retry")
		}
		if r.outputCalls != 1 {
			t.Errorf("cmake --version invoked %d times, want 1", r.outputCalls)
		}
	})

	t.Run("command failure is sticky", func(t *testing.T) {
		r := &fakeRunner{outputErr: errors.New("boom")}
		c := NewVersionCache()

		if _, ok := c.Get(context.Background(), r, "cmake"); ok {
			t.Fatal("failed lookup resolved")
		}
		c.Get(context.Background(), r, "cmake")
		if r.outputCalls != 1 {
			t.Errorf("cmake --version invoked %d times, want 1", r.outputCalls)
		}
	})
}
