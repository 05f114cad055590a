package testutil

import (
	"os"
	"testing"
)

func TestTempDir(t *testing.T) {
	dir, cleanup := TempDir(t)
	defer cleanup()

	// Check directory exists
	info, err := os.Stat(dir)
	AssertNoError(t, err)
	AssertTrue(t, info.IsDir(), "expected directory")

	// Create a file in the directory
	testFile := dir + "/test.txt"
	err = os.WriteFile(testFile, []byte("test"), 0644)
	AssertNoError(t, err)

	// Verify file exists
	_, err = os.Stat(testFile)
	AssertNoError(t, err)
}

func TestAssertions(t *testing.T) {
	// Test AssertEqual
	AssertEqual(t, 42, 42)
	AssertEqual(t, "hello", "hello")
	AssertEqual(t, []int{1, 2, 3}, []int{1, 2, 3})

	// Test AssertNoError
	AssertNoError(t, nil)

	// Test AssertTrue/False
	AssertTrue(t, true, "should be true")
	AssertFalse(t, false, "should be false")
}
