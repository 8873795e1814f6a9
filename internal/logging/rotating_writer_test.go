package logging

import (
	"os"
	"path/filepath"
	"testing"

	"voble/internal/config"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

func TestRotatingWriterKeepsOneBackup(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "voble.log")
	w, err := newRotatingWriter(path, 1)
	if err != nil {
		t.Fatalf("create writer: %v", err)
	}
	defer w.Close()

	chunk := make([]byte, 600*1024)
	for i := 0; i < 3; i++ {
		if _, err := w.Write(chunk); err != nil {
			t.Fatalf("write chunk %d: %v", i, err)
		}
	}

	info, err := os.Stat(path)
	if err != nil {
		t.Fatalf("stat log: %v", err)
	}
	if info.Size() != int64(len(chunk)) {
		t.Fatalf("active log size = %d, want %d", info.Size(), len(chunk))
	}
	backup, err := os.Stat(path + ".1")
	if err != nil {
		t.Fatalf("stat backup: %v", err)
	}
	if backup.Size() != int64(len(chunk)) {
		t.Fatalf("backup size = %d, want %d", backup.Size(), len(chunk))
	}
}

func TestRotatingWriterOversizedFirstWrite(t *testing.T) {
	path := filepath.Join(t.TempDir(), "voble.log")
	w, err := newRotatingWriter(path, 1)
	if err != nil {
		t.Fatalf("create writer: %v", err)
	}
	defer w.Close()

	if _, err := w.Write(make([]byte, 2*1024*1024)); err != nil {
		t.Fatalf("write: %v", err)
	}
	if _, err := os.Stat(path + ".1"); !os.IsNotExist(err) {
		t.Fatalf("expected no backup for first write, stat err = %v", err)
	}
}

func TestInitWritesToFile(t *testing.T) {
	prev := log.Logger
	prevLevel := zerolog.GlobalLevel()
	defer func() {
		log.Logger = prev
		zerolog.SetGlobalLevel(prevLevel)
	}()

	path := filepath.Join(t.TempDir(), "init.log")
	Init(config.LogConfig{Level: "debug", File: path, MaxMB: 1})
	log.Debug().Str("phase", "idle").Msg("hello")

	b, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read log: %v", err)
	}
	if len(b) == 0 {
		t.Fatal("expected log file to contain the debug line")
	}
	if Writer() == nil {
		t.Fatal("Writer() returned nil")
	}
}
