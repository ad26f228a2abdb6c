package tags

import (
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"testing"
	"time"

	"github.com/bogem/id3v2/v2"
	"go.senan.xyz/taglib"
)

// Format constants for testing
const (
	formatAAC    = "AAC"
	formatALAC   = "ALAC"
	formatM4A    = "M4A"
	formatOPUS   = "OPUS"
	formatVORBIS = "VORBIS"
	formatFLAC   = "FLAC"
	formatMP3    = "MP3"
)

// isM4AFormat returns true if the format is a valid M4A audio format.
func isM4AFormat(format string) bool {
	return format == formatAAC || format == formatALAC || format == formatM4A
}

// Test file creation helpers. These write tags directly with the id3v2/taglib
// libraries rather than through a production write path — the catalog never
// writes tags back to files, so no such path exists in this package.

// writeTestMP3Tags stamps a minimal set of ID3v2.4 frames onto path.
func writeTestMP3Tags(t *testing.T, path string, tags *Tag) {
	t.Helper()
	id3tag, err := id3v2.Open(path, id3v2.Options{Parse: true})
	if err != nil {
		t.Fatalf("open for tag write: %v", err)
	}
	defer id3tag.Close()

	id3tag.SetVersion(4)
	id3tag.SetDefaultEncoding(id3v2.EncodingUTF8)

	id3tag.SetTitle(tags.Title)
	id3tag.SetArtist(tags.Artist)
	id3tag.SetAlbum(tags.Album)
	id3tag.SetGenre(tags.Genre)

	if tags.Date != "" {
		id3tag.AddTextFrame("TDRC", id3v2.EncodingUTF8, tags.Date)
	}
	if tags.AlbumArtist != "" {
		id3tag.AddTextFrame("TPE2", id3v2.EncodingUTF8, tags.AlbumArtist)
	}
	if tags.TrackNumber > 0 {
		trackStr := strconv.Itoa(tags.TrackNumber)
		if tags.TotalTracks > 0 {
			trackStr += "/" + strconv.Itoa(tags.TotalTracks)
		}
		id3tag.AddTextFrame("TRCK", id3v2.EncodingUTF8, trackStr)
	}
	if tags.DiscNumber > 0 {
		discStr := strconv.Itoa(tags.DiscNumber)
		if tags.TotalDiscs > 0 {
			discStr += "/" + strconv.Itoa(tags.TotalDiscs)
		}
		id3tag.AddTextFrame("TPOS", id3v2.EncodingUTF8, discStr)
	}

	if err := id3tag.Save(); err != nil {
		t.Fatalf("save id3v2 tags: %v", err)
	}
}

// writeTestTaglibTags stamps the surviving Tag fields onto a FLAC/Ogg/M4A
// file using the same taglib.WriteTags call the teacher's write path used.
func writeTestTaglibTags(t *testing.T, path string, tags *Tag) {
	t.Helper()
	m := map[string][]string{
		taglib.Title:       {tags.Title},
		taglib.Artist:      {tags.Artist},
		taglib.Album:       {tags.Album},
		taglib.AlbumArtist: {tags.AlbumArtist},
		taglib.Genre:       {tags.Genre},
		taglib.Date:        {tags.Date},
	}
	if tags.TrackNumber > 0 {
		m[taglib.TrackNumber] = []string{strconv.Itoa(tags.TrackNumber)}
	}
	if tags.TotalTracks > 0 {
		m["TOTALTRACKS"] = []string{strconv.Itoa(tags.TotalTracks)}
	}
	if tags.DiscNumber > 0 {
		m[taglib.DiscNumber] = []string{strconv.Itoa(tags.DiscNumber)}
	}
	if tags.TotalDiscs > 0 {
		m["TOTALDISCS"] = []string{strconv.Itoa(tags.TotalDiscs)}
	}

	if err := taglib.WriteTags(path, m, taglib.Clear); err != nil {
		t.Fatalf("taglib.WriteTags: %v", err)
	}
}

// createTestMP3 creates a minimal MP3 file with optional tags.
func createTestMP3(t *testing.T, dir string, tags *Tag) string {
	t.Helper()
	path := filepath.Join(dir, "test.mp3")

	// Create minimal MP3 frame (MPEG1 Layer3, 128kbps, 44100Hz, stereo)
	mp3Frame := make([]byte, 417)
	mp3Frame[0] = 0xff
	mp3Frame[1] = 0xfb
	mp3Frame[2] = 0x90
	mp3Frame[3] = 0x00

	if err := os.WriteFile(path, mp3Frame, 0o600); err != nil {
		t.Fatalf("failed to create test MP3: %v", err)
	}

	if tags != nil {
		writeTestMP3Tags(t, path, tags)
	}

	return path
}

// createTestOpus creates a test Opus file using ffmpeg.
func createTestOpus(t *testing.T, dir string, tags *Tag) string {
	t.Helper()
	path := filepath.Join(dir, "test.opus")

	cmd := exec.Command("ffmpeg", "-y", "-f", "lavfi", "-i", "sine=frequency=440:duration=1", "-c:a", "libopus", path)
	cmd.Stderr = nil
	cmd.Stdout = nil
	if err := cmd.Run(); err != nil {
		t.Skipf("ffmpeg not available: %v", err)
	}

	if tags != nil {
		writeTestTaglibTags(t, path, tags)
	}

	return path
}

// createTestVorbis creates a test Vorbis (.ogg) file using ffmpeg.
func createTestVorbis(t *testing.T, dir string, tags *Tag) string {
	t.Helper()
	path := filepath.Join(dir, "test.ogg")

	cmd := exec.Command("ffmpeg", "-y", "-f", "lavfi", "-i", "sine=frequency=440:duration=1", "-c:a", "libvorbis", path)
	cmd.Stderr = nil
	cmd.Stdout = nil
	if err := cmd.Run(); err != nil {
		t.Skipf("ffmpeg not available: %v", err)
	}

	if tags != nil {
		// Vorbis uses the same Vorbis comments as Opus
		writeTestTaglibTags(t, path, tags)
	}

	return path
}

// createTestOGA creates a test OGA (Ogg Audio) file using ffmpeg with Vorbis codec.
func createTestOGA(t *testing.T, dir string, tags *Tag) string {
	t.Helper()
	path := filepath.Join(dir, "test.oga")

	cmd := exec.Command("ffmpeg", "-y", "-f", "lavfi", "-i", "sine=frequency=440:duration=1", "-c:a", "libvorbis", path)
	cmd.Stderr = nil
	cmd.Stdout = nil
	if err := cmd.Run(); err != nil {
		t.Skipf("ffmpeg not available: %v", err)
	}

	if tags != nil {
		// OGA uses Vorbis comments like .ogg
		writeTestTaglibTags(t, path, tags)
	}

	return path
}

// createTestFLAC creates a test FLAC file using ffmpeg.
func createTestFLAC(t *testing.T, dir string, tags *Tag) string {
	t.Helper()
	path := filepath.Join(dir, "test.flac")

	cmd := exec.Command("ffmpeg", "-y", "-f", "lavfi", "-i", "sine=frequency=440:duration=1", "-c:a", "flac", path)
	cmd.Stderr = nil
	cmd.Stdout = nil
	if err := cmd.Run(); err != nil {
		t.Skipf("ffmpeg not available: %v", err)
	}

	if tags != nil {
		writeTestTaglibTags(t, path, tags)
	}

	return path
}

// createTestM4AWithTags creates a test M4A file using ffmpeg with optional tags.
func createTestM4AWithTags(t *testing.T, dir string, tags *Tag) string {
	t.Helper()
	path := filepath.Join(dir, "test.m4a")

	cmd := exec.Command("ffmpeg", "-y", "-f", "lavfi", "-i", "sine=frequency=440:duration=1", "-c:a", "aac", path)
	cmd.Stderr = nil
	cmd.Stdout = nil
	if err := cmd.Run(); err != nil {
		t.Skipf("ffmpeg not available: %v", err)
	}

	if tags != nil {
		writeTestTaglibTags(t, path, tags)
	}

	return path
}

// fullTestTags returns a Tag with every surviving field populated for testing.
func fullTestTags() *Tag {
	return &Tag{
		Title:       "Test Title",
		Artist:      "Test Artist",
		Album:       "Test Album",
		AlbumArtist: "Test Album Artist",
		Genre:       "Rock",
		TrackNumber: 3,
		TotalTracks: 12,
		DiscNumber:  1,
		TotalDiscs:  2,
		Date:        "2023-06-15",
	}
}

// Tests for Read() entry point

func TestRead_MP3(t *testing.T) {
	dir := t.TempDir()
	tags := fullTestTags()
	path := createTestMP3(t, dir, tags)

	result, err := Read(path)
	if err != nil {
		t.Fatalf("Read() error: %v", err)
	}

	assertEqual(t, "Title", result.Title, tags.Title)
	assertEqual(t, "Artist", result.Artist, tags.Artist)
	assertEqual(t, "Album", result.Album, tags.Album)
	assertEqual(t, "AlbumArtist", result.AlbumArtist, tags.AlbumArtist)
	assertEqual(t, "Genre", result.Genre, tags.Genre)
	assertEqual(t, "TrackNumber", result.TrackNumber, tags.TrackNumber)
	assertEqual(t, "TotalTracks", result.TotalTracks, tags.TotalTracks)
	assertEqual(t, "DiscNumber", result.DiscNumber, tags.DiscNumber)
	assertEqual(t, "TotalDiscs", result.TotalDiscs, tags.TotalDiscs)
	assertEqual(t, "Date", result.Date, tags.Date)
	assertEqual(t, "Path", result.Path, path)
}

func TestRead_FLAC(t *testing.T) {
	dir := t.TempDir()
	tags := fullTestTags()
	path := createTestFLAC(t, dir, tags)

	result, err := Read(path)
	if err != nil {
		t.Fatalf("Read() error: %v", err)
	}

	assertEqual(t, "Title", result.Title, tags.Title)
	assertEqual(t, "Artist", result.Artist, tags.Artist)
	assertEqual(t, "Album", result.Album, tags.Album)
	assertEqual(t, "AlbumArtist", result.AlbumArtist, tags.AlbumArtist)
	assertEqual(t, "Date", result.Date, tags.Date)
}

func TestRead_Opus(t *testing.T) {
	dir := t.TempDir()
	tags := fullTestTags()
	path := createTestOpus(t, dir, tags)

	result, err := Read(path)
	if err != nil {
		t.Fatalf("Read() error: %v", err)
	}

	assertEqual(t, "Title", result.Title, tags.Title)
	assertEqual(t, "Artist", result.Artist, tags.Artist)
	assertEqual(t, "Album", result.Album, tags.Album)
	assertEqual(t, "AlbumArtist", result.AlbumArtist, tags.AlbumArtist)
	assertEqual(t, "Date", result.Date, tags.Date)
}

func TestRead_Vorbis(t *testing.T) {
	dir := t.TempDir()
	tags := fullTestTags()
	path := createTestVorbis(t, dir, tags)

	result, err := Read(path)
	if err != nil {
		t.Fatalf("Read() error: %v", err)
	}

	// Vorbis uses the same Vorbis comments as Opus
	assertEqual(t, "Title", result.Title, tags.Title)
	assertEqual(t, "Artist", result.Artist, tags.Artist)
	assertEqual(t, "Album", result.Album, tags.Album)
	assertEqual(t, "AlbumArtist", result.AlbumArtist, tags.AlbumArtist)
	assertEqual(t, "Date", result.Date, tags.Date)
}

func TestRead_OGA(t *testing.T) {
	dir := t.TempDir()
	tags := fullTestTags()
	path := createTestOGA(t, dir, tags)

	result, err := Read(path)
	if err != nil {
		t.Fatalf("Read() error: %v", err)
	}

	// OGA uses Vorbis comments
	assertEqual(t, "Title", result.Title, tags.Title)
	assertEqual(t, "Artist", result.Artist, tags.Artist)
	assertEqual(t, "Album", result.Album, tags.Album)
	assertEqual(t, "AlbumArtist", result.AlbumArtist, tags.AlbumArtist)
	assertEqual(t, "Date", result.Date, tags.Date)
}

func TestRead_M4A(t *testing.T) {
	dir := t.TempDir()
	tags := fullTestTags()
	path := createTestM4AWithTags(t, dir, tags)

	result, err := Read(path)
	if err != nil {
		t.Fatalf("Read() error: %v", err)
	}

	assertEqual(t, "Title", result.Title, tags.Title)
	assertEqual(t, "Artist", result.Artist, tags.Artist)
	assertEqual(t, "Album", result.Album, tags.Album)
	assertEqual(t, "AlbumArtist", result.AlbumArtist, tags.AlbumArtist)
	assertEqual(t, "Date", result.Date, tags.Date)
}

func TestRead_NonexistentFile(t *testing.T) {
	_, err := Read("/nonexistent/path/file.mp3")
	if err == nil {
		t.Error("expected error for nonexistent file")
	}
}

func TestRead_TitleFallbackToFilename(t *testing.T) {
	dir := t.TempDir()
	// Create MP3 without title tag
	tags := &Tag{
		Artist: "Test Artist",
		Album:  "Test Album",
	}
	path := createTestMP3(t, dir, tags)

	// Rename to a specific filename
	newPath := filepath.Join(dir, "My Song.mp3")
	if err := os.Rename(path, newPath); err != nil {
		t.Fatalf("rename: %v", err)
	}

	result, err := Read(newPath)
	if err != nil {
		t.Fatalf("Read() error: %v", err)
	}

	// Title should fall back to filename
	if result.Title != "My Song.mp3" {
		t.Errorf("Title = %q, want %q", result.Title, "My Song.mp3")
	}
}

func TestRead_AlbumArtistFallbackToArtist(t *testing.T) {
	dir := t.TempDir()
	// Create MP3 with artist but no album artist
	tags := &Tag{
		Title:  "Test",
		Artist: "Solo Artist",
		Album:  "Test Album",
	}
	path := createTestMP3(t, dir, tags)

	// Clear album artist by re-reading raw tags
	id3tag, err := id3v2.Open(path, id3v2.Options{Parse: true})
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	id3tag.DeleteFrames("TPE2") // Remove album artist frame
	if err := id3tag.Save(); err != nil {
		t.Fatalf("save: %v", err)
	}
	id3tag.Close()

	result, err := Read(path)
	if err != nil {
		t.Fatalf("Read() error: %v", err)
	}

	// Album artist should fall back to artist
	if result.AlbumArtist != "Solo Artist" {
		t.Errorf("AlbumArtist = %q, want %q", result.AlbumArtist, "Solo Artist")
	}
}

// Tests for ReadWithAudio()

func TestReadWithAudio_MP3(t *testing.T) {
	dir := t.TempDir()
	tags := &Tag{Title: "Test", Artist: "Test Artist"}
	path := createTestMP3(t, dir, tags)

	result, err := ReadWithAudio(path)
	if err != nil {
		t.Fatalf("ReadWithAudio() error: %v", err)
	}

	assertEqual(t, "Title", result.Title, tags.Title)
	assertEqual(t, "Artist", result.Artist, tags.Artist)

	if result.Format != "MP3" {
		t.Errorf("Format = %q, want %q", result.Format, "MP3")
	}
	if result.SampleRate != 44100 {
		t.Errorf("SampleRate = %d, want %d", result.SampleRate, 44100)
	}
}

func TestReadWithAudio_FLAC(t *testing.T) {
	dir := t.TempDir()
	tags := &Tag{Title: "Test", Artist: "Test Artist"}
	path := createTestFLAC(t, dir, tags)

	result, err := ReadWithAudio(path)
	if err != nil {
		t.Fatalf("ReadWithAudio() error: %v", err)
	}

	if result.Format != "FLAC" {
		t.Errorf("Format = %q, want %q", result.Format, "FLAC")
	}
	if result.Duration <= 0 {
		t.Errorf("Duration = %v, want > 0", result.Duration)
	}
}

func TestReadWithAudio_Opus(t *testing.T) {
	dir := t.TempDir()
	tags := &Tag{Title: "Test", Artist: "Test Artist"}
	path := createTestOpus(t, dir, tags)

	result, err := ReadWithAudio(path)
	if err != nil {
		t.Fatalf("ReadWithAudio() error: %v", err)
	}

	if result.Format != formatOPUS {
		t.Errorf("Format = %q, want %q", result.Format, formatOPUS)
	}
	if result.SampleRate != 48000 {
		t.Errorf("SampleRate = %d, want %d (Opus always decodes to 48kHz)", result.SampleRate, 48000)
	}
}

func TestReadWithAudio_Vorbis(t *testing.T) {
	dir := t.TempDir()
	tags := &Tag{Title: "Test", Artist: "Test Artist"}
	path := createTestVorbis(t, dir, tags)

	result, err := ReadWithAudio(path)
	if err != nil {
		t.Fatalf("ReadWithAudio() error: %v", err)
	}

	if result.Format != formatVORBIS {
		t.Errorf("Format = %q, want %q", result.Format, formatVORBIS)
	}
	// ffmpeg sine filter defaults to 44100 Hz
	if result.SampleRate != 44100 {
		t.Errorf("SampleRate = %d, want %d", result.SampleRate, 44100)
	}
	if result.Duration <= 0 {
		t.Errorf("Duration = %v, want > 0", result.Duration)
	}
}

func TestReadWithAudio_OGA(t *testing.T) {
	dir := t.TempDir()
	tags := &Tag{Title: "Test", Artist: "Test Artist"}
	path := createTestOGA(t, dir, tags)

	result, err := ReadWithAudio(path)
	if err != nil {
		t.Fatalf("ReadWithAudio() error: %v", err)
	}

	if result.Format != formatVORBIS {
		t.Errorf("Format = %q, want %q", result.Format, formatVORBIS)
	}
	if result.SampleRate != 44100 {
		t.Errorf("SampleRate = %d, want %d", result.SampleRate, 44100)
	}
	if result.Duration <= 0 {
		t.Errorf("Duration = %v, want > 0", result.Duration)
	}
}

func TestReadWithAudio_M4A(t *testing.T) {
	dir := t.TempDir()
	tags := &Tag{Title: "Test", Artist: "Test Artist"}
	path := createTestM4AWithTags(t, dir, tags)

	result, err := ReadWithAudio(path)
	if err != nil {
		t.Fatalf("ReadWithAudio() error: %v", err)
	}

	if !isM4AFormat(result.Format) {
		t.Errorf("Format = %q, want %s/%s/%s", result.Format, formatAAC, formatALAC, formatM4A)
	}
	if result.Duration <= 0 {
		t.Errorf("Duration = %v, want > 0", result.Duration)
	}
}

// Tests for Unicode support

func TestRead_Unicode(t *testing.T) {
	dir := t.TempDir()
	tags := &Tag{
		Title:       "日本語タイトル",
		Artist:      "アーティスト名",
		Album:       "Альбом на русском",
		AlbumArtist: "Künstler mit Umlauten",
	}
	path := createTestMP3(t, dir, tags)

	result, err := Read(path)
	if err != nil {
		t.Fatalf("Read() error: %v", err)
	}

	assertEqual(t, "Title", result.Title, tags.Title)
	assertEqual(t, "Artist", result.Artist, tags.Artist)
	assertEqual(t, "Album", result.Album, tags.Album)
	assertEqual(t, "AlbumArtist", result.AlbumArtist, tags.AlbumArtist)
}

// Tests for yearToDate helper

func TestYearToDate(t *testing.T) {
	tests := []struct {
		year int
		want string
	}{
		{0, ""},
		{2023, "2023"},
		{1999, "1999"},
		{1, "1"},
	}

	for _, tt := range tests {
		got := yearToDate(tt.year)
		if got != tt.want {
			t.Errorf("yearToDate(%d) = %q, want %q", tt.year, got, tt.want)
		}
	}
}

// Tests for ReadAudioInfo

func TestReadAudioInfo_MP3(t *testing.T) {
	dir := t.TempDir()
	path := createTestMP3(t, dir, nil)

	info, err := ReadAudioInfo(path)
	if err != nil {
		t.Fatalf("ReadAudioInfo() error: %v", err)
	}

	if info.Format != "MP3" {
		t.Errorf("Format = %q, want %q", info.Format, "MP3")
	}
	if info.SampleRate != 44100 {
		t.Errorf("SampleRate = %d, want %d", info.SampleRate, 44100)
	}
	if info.BitDepth != 16 {
		t.Errorf("BitDepth = %d, want %d", info.BitDepth, 16)
	}
}

func TestReadAudioInfo_FLAC(t *testing.T) {
	dir := t.TempDir()
	path := createTestFLAC(t, dir, nil)

	info, err := ReadAudioInfo(path)
	if err != nil {
		t.Fatalf("ReadAudioInfo() error: %v", err)
	}

	if info.Format != "FLAC" {
		t.Errorf("Format = %q, want %q", info.Format, "FLAC")
	}
	if info.SampleRate <= 0 {
		t.Errorf("SampleRate = %d, want > 0", info.SampleRate)
	}
	if info.Duration <= 0 {
		t.Errorf("Duration = %v, want > 0", info.Duration)
	}
}

func TestReadAudioInfo_Opus(t *testing.T) {
	dir := t.TempDir()
	path := createTestOpus(t, dir, nil)

	info, err := ReadAudioInfo(path)
	if err != nil {
		t.Fatalf("ReadAudioInfo() error: %v", err)
	}

	if info.Format != formatOPUS {
		t.Errorf("Format = %q, want %q", info.Format, formatOPUS)
	}
	// Opus always reports 48kHz
	if info.SampleRate != 48000 {
		t.Errorf("SampleRate = %d, want %d", info.SampleRate, 48000)
	}
}

func TestReadAudioInfo_Vorbis(t *testing.T) {
	dir := t.TempDir()
	path := createTestVorbis(t, dir, nil)

	info, err := ReadAudioInfo(path)
	if err != nil {
		t.Fatalf("ReadAudioInfo() error: %v", err)
	}

	if info.Format != formatVORBIS {
		t.Errorf("Format = %q, want %q", info.Format, formatVORBIS)
	}
	if info.SampleRate != 44100 {
		t.Errorf("SampleRate = %d, want %d", info.SampleRate, 44100)
	}
	if info.Duration <= 0 {
		t.Errorf("Duration = %v, want > 0", info.Duration)
	}
}

func TestReadAudioInfo_OGA(t *testing.T) {
	dir := t.TempDir()
	path := createTestOGA(t, dir, nil)

	info, err := ReadAudioInfo(path)
	if err != nil {
		t.Fatalf("ReadAudioInfo() error: %v", err)
	}

	if info.Format != formatVORBIS {
		t.Errorf("Format = %q, want %q", info.Format, formatVORBIS)
	}
	if info.SampleRate != 44100 {
		t.Errorf("SampleRate = %d, want %d", info.SampleRate, 44100)
	}
	if info.Duration <= 0 {
		t.Errorf("Duration = %v, want > 0", info.Duration)
	}
}

func TestReadAudioInfo_M4A(t *testing.T) {
	dir := t.TempDir()
	path := createTestM4AWithTags(t, dir, nil)

	info, err := ReadAudioInfo(path)
	if err != nil {
		t.Fatalf("ReadAudioInfo() error: %v", err)
	}

	if !isM4AFormat(info.Format) {
		t.Errorf("Format = %q, want %s/%s/%s", info.Format, formatAAC, formatALAC, formatM4A)
	}
	if info.Duration <= 0 {
		t.Errorf("Duration = %v, want > 0", info.Duration)
	}
}

func TestReadAudioInfo_UnsupportedFormat(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "test.txt")
	if err := os.WriteFile(path, []byte("RIFF"), 0o600); err != nil {
		t.Fatalf("create file: %v", err)
	}

	_, err := ReadAudioInfo(path)
	if err == nil {
		t.Error("expected error for unsupported format")
	}
}

func TestReadAudioInfo_Duration(t *testing.T) {
	dir := t.TempDir()

	// Create 1 second audio files
	opusPath := createTestOpus(t, dir, nil)
	flacPath := createTestFLAC(t, dir, nil)
	m4aPath := createTestM4AWithTags(t, dir, nil)
	vorbisPath := createTestVorbis(t, dir, nil)
	ogaPath := createTestOGA(t, dir, nil)

	tests := []struct {
		name string
		path string
	}{
		{"Opus", opusPath},
		{"FLAC", flacPath},
		{"M4A", m4aPath},
		{"Vorbis", vorbisPath},
		{"OGA", ogaPath},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			info, err := ReadAudioInfo(tt.path)
			if err != nil {
				t.Fatalf("ReadAudioInfo() error: %v", err)
			}

			// Duration should be approximately 1 second (test files are 1s)
			if info.Duration < 900*time.Millisecond || info.Duration > 1100*time.Millisecond {
				t.Errorf("Duration = %v, want approximately 1s", info.Duration)
			}
		})
	}
}

// Tests for MP3 ID3v2.3 date format parsing

func TestRead_MP3_ID3v23DateFormat(t *testing.T) {
	dir := t.TempDir()
	path := createTestMP3(t, dir, nil)

	// Write ID3v2.3 format date tags (TYER + TDAT)
	id3tag, err := id3v2.Open(path, id3v2.Options{Parse: true})
	if err != nil {
		t.Fatalf("open: %v", err)
	}

	id3tag.SetTitle("Test")
	id3tag.AddTextFrame("TYER", id3v2.EncodingUTF8, "2023")
	id3tag.AddTextFrame("TDAT", id3v2.EncodingUTF8, "1506") // DDMM format: 15th June

	if err := id3tag.Save(); err != nil {
		t.Fatalf("save: %v", err)
	}
	id3tag.Close()

	result, err := Read(path)
	if err != nil {
		t.Fatalf("Read() error: %v", err)
	}

	// Date should be parsed as YYYY-MM-DD from TYER + TDAT
	if result.Date != "2023-06-15" {
		t.Errorf("Date = %q, want %q", result.Date, "2023-06-15")
	}
}

// Tests for FLAC with Vorbis comments

func TestRead_FLAC_AllExtendedTags(t *testing.T) {
	dir := t.TempDir()
	path := createTestFLAC(t, dir, nil)

	tags := map[string][]string{
		"TITLE":       {"Test Title"},
		"ARTIST":      {"Test Artist"},
		"ALBUM":       {"Test Album"},
		"ALBUMARTIST": {"Test Album Artist"},
		"DATE":        {"2023-06-15"},
	}

	if err := taglib.WriteTags(path, tags, taglib.Clear); err != nil {
		t.Fatalf("WriteTags: %v", err)
	}

	result, err := Read(path)
	if err != nil {
		t.Fatalf("Read() error: %v", err)
	}

	assertEqual(t, "Date", result.Date, "2023-06-15")
}

// Test helpers

func assertEqual[T comparable](t *testing.T, field string, got, want T) {
	t.Helper()
	if got != want {
		t.Errorf("%s = %v, want %v", field, got, want)
	}
}
