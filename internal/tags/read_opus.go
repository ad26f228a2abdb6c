package tags

import (
	"path/filepath"

	"go.senan.xyz/taglib"
)

// readOggWithTaglib reads Opus/Vorbis metadata using TagLib as fallback
// when dhowden/tag fails. It backs every Ogg-container extension
// (opus, ogg, oga) that internal/decode's OggCodec abstraction decodes.
func readOggWithTaglib(path string) (*Tag, error) {
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

	t := &Tag{
		Path:        path,
		Title:       title,
		Artist:      artist,
		AlbumArtist: albumArtist,
		Album:       tags.get(taglib.Album),
		Genre:       tags.get(taglib.Genre),
		TrackNumber: tags.getInt(taglib.TrackNumber),
		TotalTracks: tags.getInt("TOTALTRACKS"),
		DiscNumber:  tags.getInt(taglib.DiscNumber),
		TotalDiscs:  tags.getInt("TOTALDISCS"),
	}

	// Read extended tags
	readOggExtendedTags(path, t)

	t.Sanitize()
	return t, nil
}

// readOggExtendedTags refines the release date from the Vorbis comment
// block TagLib exposes for Opus/Vorbis-in-Ogg files.
func readOggExtendedTags(path string, t *Tag) {
	rawTags, err := taglib.ReadTags(path)
	if err != nil {
		return
	}
	tags := taglibTags(rawTags)

	t.Date = tags.get(taglib.Date)

	// Track/disc totals (dhowden/tag may not return these)
	if t.TotalTracks == 0 {
		t.TotalTracks = tags.getInt("TOTALTRACKS")
	}
	if t.TotalDiscs == 0 {
		t.TotalDiscs = tags.getInt("TOTALDISCS")
	}
}
