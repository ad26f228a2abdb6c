package tags

import (
	"path/filepath"

	"go.senan.xyz/taglib"
)

// readM4AWithTaglib reads M4A metadata using TagLib as fallback when dhowden/tag fails.
func readM4AWithTaglib(path string) (*Tag, error) {
	rawTags, err := taglib.ReadTags(path)
	if err != nil {
		return nil, err
	}
	tags := taglibTags(rawTags)

	title := tags.get(taglib.Title)
	if title == "" {
		title = filepath.Base(path)
	}

	artist := tags.get(taglib.Artist)
	albumArtist := tags.get(taglib.AlbumArtist)
	if albumArtist == "" {
		albumArtist = artist
	}

	trackNum, trackTotal := tags.parseNumberPair(taglib.TrackNumber)
	discNum, discTotal := tags.parseNumberPair(taglib.DiscNumber)

	// Also check custom TOTALTRACKS/TOTALDISCS atoms if not in the number format
	if trackTotal == 0 {
		trackTotal = tags.getInt("TOTALTRACKS")
	}
	if discTotal == 0 {
		discTotal = tags.getInt("TOTALDISCS")
	}

	t := &Tag{
		Path:        path,
		Title:       title,
		Artist:      artist,
		AlbumArtist: albumArtist,
		Album:       tags.get(taglib.Album),
		Genre:       tags.get(taglib.Genre),
		TrackNumber: trackNum,
		TotalTracks: trackTotal,
		DiscNumber:  discNum,
		TotalDiscs:  discTotal,
	}

	// Read extended tags
	readM4AExtendedTags(path, t)

	t.Sanitize()
	return t, nil
}

// readM4AExtendedTags refines the release date from the M4A/MP4 file's
// own Date atom, which dhowden/tag doesn't always expose.
func readM4AExtendedTags(path string, t *Tag) {
	rawTags, err := taglib.ReadTags(path)
	if err != nil {
		return
	}
	tags := taglibTags(rawTags)
	t.Date = tags.get(taglib.Date)
}
