// Package mediaresolve picks the playable file out of a torrent's file
// listing. Selection runs as an ordered chain of strategies, each falling
// through when it has no match: explicit index, episode naming patterns,
// largest video file, largest file overall.
package mediaresolve

import (
	"errors"
	"path"
	"regexp"
	"strconv"
	"strings"

	"onyxstream/models"
)

// File is one entry from the provider's torrent file listing.
type File struct {
	ID    int
	Path  string
	Bytes int64
}

// ErrNoFiles is returned when the torrent listing is empty.
var ErrNoFiles = errors.New("no files available in torrent")

var videoExtensions = map[string]struct{}{
	".mp4":  {},
	".mkv":  {},
	".avi":  {},
	".webm": {},
}

// Episode naming patterns accepted in release filenames: "S01E02", "s1e2",
// "S01 - E02", "1x02". Matched against the basename only.
var (
	episodeCodePattern = regexp.MustCompile(`(?i)\bs(\d{1,2})\s*[-._ ]*\s*e(\d{1,3})\b`)
	episodeCrossPattern = regexp.MustCompile(`(?i)\b(\d{1,2})x(\d{1,3})\b`)
)

// SelectFile picks a file per the selector, falling back to the largest
// video file and finally the largest file of any kind.
func SelectFile(files []File, sel models.FileSelector) (File, error) {
	if len(files) == 0 {
		return File{}, ErrNoFiles
	}

	strategies := []func([]File, models.FileSelector) (File, bool){
		byExplicitIndex,
		byEpisodePattern,
		byLargestVideo,
		byLargestAny,
	}
	for _, strategy := range strategies {
		if file, ok := strategy(files, sel); ok {
			return file, nil
		}
	}

	// byLargestAny always matches a non-empty listing.
	return File{}, ErrNoFiles
}

func byExplicitIndex(files []File, sel models.FileSelector) (File, bool) {
	if !sel.HasIndex() {
		return File{}, false
	}
	idx := *sel.Index
	if idx < 0 || idx >= len(files) {
		return File{}, false
	}
	return files[idx], true
}

func byEpisodePattern(files []File, sel models.FileSelector) (File, bool) {
	if !sel.HasEpisode() {
		return File{}, false
	}
	for _, file := range files {
		name := path.Base(strings.ReplaceAll(file.Path, "\\", "/"))
		if !hasVideoExtension(name) {
			continue
		}
		if season, episode, ok := parseEpisodeCode(name); ok &&
			season == sel.Season && episode == sel.Episode {
			return file, true
		}
	}
	return File{}, false
}

func byLargestVideo(files []File, _ models.FileSelector) (File, bool) {
	best := -1
	for i, file := range files {
		if !hasVideoExtension(file.Path) {
			continue
		}
		if best == -1 || file.Bytes > files[best].Bytes {
			best = i
		}
	}
	if best == -1 {
		return File{}, false
	}
	return files[best], true
}

func byLargestAny(files []File, _ models.FileSelector) (File, bool) {
	best := 0
	for i, file := range files {
		if file.Bytes > files[best].Bytes {
			best = i
		}
	}
	return files[best], true
}

func hasVideoExtension(name string) bool {
	ext := strings.ToLower(path.Ext(strings.TrimSpace(name)))
	_, ok := videoExtensions[ext]
	return ok
}

// parseEpisodeCode extracts a (season, episode) pair from a filename.
func parseEpisodeCode(name string) (int, int, bool) {
	if strings.TrimSpace(name) == "" {
		return 0, 0, false
	}
	for _, pattern := range []*regexp.Regexp{episodeCodePattern, episodeCrossPattern} {
		matches := pattern.FindStringSubmatch(name)
		if len(matches) != 3 {
			continue
		}
		season, err := strconv.Atoi(matches[1])
		if err != nil {
			continue
		}
		episode, err := strconv.Atoi(matches[2])
		if err != nil {
			continue
		}
		return season, episode, true
	}
	return 0, 0, false
}
