package main

import (
	"bytes"
	"errors"
	"io"
	"os"
	"path/filepath"
	"testing"
)

func TestWriteExportToFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cleaning.csv")
	err := writeExport(path, io.Discard, func(w io.Writer) error {
		_, err := io.WriteString(w, "Date,Modules Cleaned\n")
		return err
	})
	if err != nil {
		t.Fatalf("writeExport: %v", err)
	}
	got, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	if string(got) != "Date,Modules Cleaned\n" {
		t.Fatalf("file contents: %q", got)
	}
}

func TestWriteExportFailureRemovesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cleaning.csv")
	boom := errors.New("range has no records")
	err := writeExport(path, io.Discard, func(w io.Writer) error {
		_, _ = io.WriteString(w, "Date,")
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("got %v want %v", err, boom)
	}
	if _, statErr := os.Stat(path); !os.IsNotExist(statErr) {
		t.Fatalf("partial export left behind: %v", statErr)
	}
}

func TestWriteExportToStdout(t *testing.T) {
	var buf bytes.Buffer
	if err := writeExport("", &buf, func(w io.Writer) error {
		_, err := io.WriteString(w, "ok")
		return err
	}); err != nil {
		t.Fatalf("writeExport: %v", err)
	}
	if buf.String() != "ok" {
		t.Fatalf("stdout: %q", buf.String())
	}
}
