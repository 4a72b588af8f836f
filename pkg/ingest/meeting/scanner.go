package meeting

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
	"time"
)

// TranscriptFile is a transcript discovered on disk.
type TranscriptFile struct {
	Path string `json:"path"`
	// Format comes from the extension. It is empty for .txt files, whose
	// dialect is detected from content.
	Format TranscriptFormat `json:"format,omitempty"`
	Title  string           `json:"title"`
	Date   time.Time        `json:"date,omitempty"`
}

// MeetingInfo is the title and date encoded in a file or directory name.
type MeetingInfo struct {
	Title string
	Date  time.Time
}

var extensionFormats = map[string]TranscriptFormat{
	".vtt":  FormatVTT,
	".srt":  FormatSRT,
	".txt":  "",
	".text": "",
}

// DetectFileFormat maps a file extension to a format. ok is false for
// extensions that never hold transcripts.
func DetectFileFormat(filename string) (format TranscriptFormat, ok bool) {
	format, ok = extensionFormats[strings.ToLower(filepath.Ext(filename))]
	return format, ok
}

// IsTranscriptFile reports whether filename has a transcript extension.
func IsTranscriptFile(filename string) bool {
	_, ok := DetectFileFormat(filename)
	return ok
}

// ScanTranscriptFiles returns the transcript files at path, sorted by path. A
// directory is walked recursively, skipping dot files and dot directories.
func ScanTranscriptFiles(path string) ([]TranscriptFile, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, err
	}
	if !info.IsDir() {
		if !IsTranscriptFile(path) {
			return nil, fmt.Errorf("not a transcript file (.vtt, .srt, .txt): %s", path)
		}
		f, err := describeFile(path)
		if err != nil {
			return nil, err
		}
		return []TranscriptFile{f}, nil
	}

	var files []TranscriptFile
	walk := func(p string, d fs.DirEntry, err error) error {
		switch {
		case err != nil:
			return err
		case p == path:
			return nil
		case strings.HasPrefix(d.Name(), "."):
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		case d.IsDir(), !d.Type().IsRegular(), !IsTranscriptFile(d.Name()):
			return nil
		}
		f, err := describeFile(p)
		if err == nil {
			files = append(files, f)
		}
		return err
	}
	if err := filepath.WalkDir(path, walk); err != nil {
		return nil, err
	}

	sort.Slice(files, func(i, j int) bool { return files[i].Path < files[j].Path })
	return files, nil
}

func describeFile(path string) (TranscriptFile, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return TranscriptFile{}, err
	}
	format, _ := DetectFileFormat(abs)
	info := ExtractMeetingInfo(filepath.Base(abs))
	return TranscriptFile{Path: abs, Format: format, Title: NormalizeTitle(info.Title), Date: info.Date}, nil
}

// nameRule recognizes one naming convention. title is the submatch index of
// the title, or 0 to keep the whole name; date indexes the 8-digit date.
type nameRule struct {
	re      *regexp.Regexp
	title   int
	date    int
	layouts []string
}

var nameRules = []nameRule{
	// Recording export: "Weekly Sync-20250218 1509-1"
	{re: regexp.MustCompile(`^(.+)-(\d{8})\s+\d{4}-\d+$`), title: 1, date: 2, layouts: []string{"20060102"}},
	// Teams download: "Transcript_Jane Doe_s meeting_20251015"
	{re: regexp.MustCompile(`^Transcript_.+_(\d{8})$`), date: 1, layouts: []string{"20060102"}},
	// Trailing date: "Retro_20251007" or "Planning - 09092025"
	{re: regexp.MustCompile(`^(.+?)[\s_-]+(\d{8})$`), title: 1, date: 2, layouts: []string{"20060102", "01022006"}},
}

// ExtractMeetingInfo reads a meeting title and date from a file or directory
// name. Names that match no convention become the title with a zero date.
func ExtractMeetingInfo(name string) MeetingInfo {
	name = strings.TrimSuffix(name, filepath.Ext(name))
	for _, rule := range nameRules {
		m := rule.re.FindStringSubmatch(name)
		if m == nil {
			continue
		}
		info := MeetingInfo{Title: name, Date: parseFirst(m[rule.date], rule.layouts)}
		if rule.title > 0 {
			info.Title = strings.TrimSpace(m[rule.title])
		}
		return info
	}
	return MeetingInfo{Title: name}
}

func parseFirst(value string, layouts []string) time.Time {
	for _, layout := range layouts {
		if t, err := time.Parse(layout, value); err == nil {
			return t
		}
	}
	return time.Time{}
}

var (
	titleDateSuffix = regexp.MustCompile(`(\s*-?\s*\d{8}\s+\d{4}-\d+|[_\s]*\d{8})$`)
	titleSeparators = regexp.MustCompile(`[\s_]+`)
)

// NormalizeTitle drops a trailing date stamp and collapses underscores and
// runs of whitespace to single spaces.
func NormalizeTitle(title string) string {
	title = titleDateSuffix.ReplaceAllString(title, "")
	return strings.TrimSpace(titleSeparators.ReplaceAllString(title, " "))
}
