package tag

import (
	"bytes"
	"context"
	"encoding/binary"
	"os"
	"path/filepath"
	"testing"
)

// id3v23 builds a minimal ID3v2.3 tag with text frames.
func id3v23(frames map[string]string) []byte {
	var body bytes.Buffer
	for _, id := range []string{"TIT2", "TPE1", "TALB"} {
		text, ok := frames[id]
		if !ok {
			continue
		}
		data := append([]byte{0x00}, text...)
		body.WriteString(id)
		binary.Write(&body, binary.BigEndian, uint32(len(data)))
		body.Write([]byte{0, 0})
		body.Write(data)
	}
	size := body.Len()
	header := []byte{'I', 'D', '3', 3, 0, 0,
		byte(size >> 21 & 0x7f), byte(size >> 14 & 0x7f), byte(size >> 7 & 0x7f), byte(size & 0x7f)}
	return append(header, body.Bytes()...)
}

func TestTagReader_ReadSong(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "song.mp3")
	data := id3v23(map[string]string{"TIT2": "One More Time", "TPE1": "Daft Punk", "TALB": "Discovery"})
	if err := os.WriteFile(path, data, 0644); err != nil {
		t.Fatal(err)
	}

	song, embedded, err := NewTagReader().ReadSong(context.Background(), path)
	if err != nil {
		t.Fatalf("ReadSong: %v", err)
	}
	if song.Artist != "Daft Punk" || song.Title != "One More Time" || song.Album != "Discovery" {
		t.Errorf("unexpected song %+v", song)
	}
	if song.Fingerprint() != "daft_punk_one_more_time" {
		t.Errorf("fingerprint = %q", song.Fingerprint())
	}
	if embedded != nil {
		t.Errorf("expected no embedded lyrics, got %+v", embedded)
	}
}

func TestTagReader_Errors(t *testing.T) {
	dir := t.TempDir()
	r := NewTagReader()

	if _, _, err := r.ReadSong(context.Background(), filepath.Join(dir, "missing.mp3")); err == nil {
		t.Error("expected error for missing file")
	}

	junk := filepath.Join(dir, "junk.mp3")
	os.WriteFile(junk, []byte("this is not an audio file"), 0644)
	if _, _, err := r.ReadSong(context.Background(), junk); err == nil {
		t.Error("expected error for untagged file")
	}

	untitled := filepath.Join(dir, "untitled.mp3")
	os.WriteFile(untitled, id3v23(map[string]string{"TPE1": "Someone"}), 0644)
	if _, _, err := r.ReadSong(context.Background(), untitled); err == nil {
		t.Error("expected error for file without title")
	}
}
