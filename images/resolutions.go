package images

import (
	"fmt"
	"math"
	"sort"
	"strings"
)

// AspectRatio represents an aspect ratio by name (e.g., "16:9").
type AspectRatio string

// Defines common aspect ratios of output resolutions.
const (
	AspectRatio169 AspectRatio = "16:9"
	AspectRatio43  AspectRatio = "4:3"
	AspectRatio54  AspectRatio = "5:4"
	AspectRatio32  AspectRatio = "3:2"
	AspectRatio11  AspectRatio = "1:1"
)

// ResolutionType is the short alias of a named output resolution.
type ResolutionType string

// Named output resolutions. All of them fit inside MaxOutput.
const (
	ResolutionTypeNHD      ResolutionType = "nhd"
	ResolutionTypeFWVGA    ResolutionType = "fwvga"
	ResolutionTypeQHD540   ResolutionType = "540p"
	ResolutionTypeHD720p   ResolutionType = "720p"
	ResolutionTypeWXGA     ResolutionType = "wxga"
	ResolutionTypeHDPlus   ResolutionType = "hd+"
	ResolutionType1MP54    ResolutionType = "1mp"
	ResolutionTypeFHD1080p ResolutionType = "1080p"
	ResolutionType2MP43    ResolutionType = "2mp"
	ResolutionTypeQHD1440p ResolutionType = "1440p"
	ResolutionType3MP43    ResolutionType = "3mp"
	ResolutionTypeSquare   ResolutionType = "square"
	ResolutionType4KUHD    ResolutionType = "4k"
)

// ResolutionPixels describes the exact dimensions of a resolution.
type ResolutionPixels struct {
	Width  int `json:"width"`
	Height int `json:"height"`
}

// Resolution describes a named output resolution.
type Resolution struct {
	Name        ResolutionType   `json:"name"`
	Title       string           `json:"title"`
	AspectRatio AspectRatio      `json:"aspectRatio"`
	Pixels      ResolutionPixels `json:"pixels"`
}

// MaxOutput is the largest output the planner will produce (4K UHD).
var MaxOutput = ResolutionPixels{Width: 3840, Height: 2160}

// GetMegaPixels calculates the megapixel value based on the resolution's pixel dimensions.
// It returns the value rounded to two decimal places (e.g., 2.07 for 1080p).
func (r Resolution) GetMegaPixels() float64 {
	if r.Pixels.Width <= 0 || r.Pixels.Height <= 0 {
		return 0.0
	}
	mp := float64(r.Pixels.Width*r.Pixels.Height) / 1_000_000.0
	return math.Round(mp*100) / 100
}

// String returns a human-readable summary of the resolution.
func (r Resolution) String() string {
	return fmt.Sprintf("%s (%dx%d, %.2fMP)", r.Title, r.Pixels.Width, r.Pixels.Height, r.GetMegaPixels())
}

// resolutions stores all named resolutions keyed by alias.
var resolutions = map[ResolutionType]Resolution{
	ResolutionTypeNHD:      {Name: ResolutionTypeNHD, Title: "nHD", AspectRatio: AspectRatio169, Pixels: ResolutionPixels{Width: 640, Height: 360}},
	ResolutionTypeFWVGA:    {Name: ResolutionTypeFWVGA, Title: "FWVGA", AspectRatio: AspectRatio169, Pixels: ResolutionPixels{Width: 854, Height: 480}},
	ResolutionTypeQHD540:   {Name: ResolutionTypeQHD540, Title: "qHD 540p", AspectRatio: AspectRatio169, Pixels: ResolutionPixels{Width: 960, Height: 540}},
	ResolutionTypeHD720p:   {Name: ResolutionTypeHD720p, Title: "HD 720p", AspectRatio: AspectRatio169, Pixels: ResolutionPixels{Width: 1280, Height: 720}},
	ResolutionTypeWXGA:     {Name: ResolutionTypeWXGA, Title: "WXGA", AspectRatio: AspectRatio169, Pixels: ResolutionPixels{Width: 1366, Height: 768}},
	ResolutionTypeHDPlus:   {Name: ResolutionTypeHDPlus, Title: "HD+", AspectRatio: AspectRatio169, Pixels: ResolutionPixels{Width: 1600, Height: 900}},
	ResolutionType1MP54:    {Name: ResolutionType1MP54, Title: "1MP (5:4)", AspectRatio: AspectRatio54, Pixels: ResolutionPixels{Width: 1280, Height: 1024}},
	ResolutionTypeFHD1080p: {Name: ResolutionTypeFHD1080p, Title: "Full HD 1080p", AspectRatio: AspectRatio169, Pixels: ResolutionPixels{Width: 1920, Height: 1080}},
	ResolutionType2MP43:    {Name: ResolutionType2MP43, Title: "2MP (4:3)", AspectRatio: AspectRatio43, Pixels: ResolutionPixels{Width: 1600, Height: 1200}},
	ResolutionTypeQHD1440p: {Name: ResolutionTypeQHD1440p, Title: "QHD 1440p", AspectRatio: AspectRatio169, Pixels: ResolutionPixels{Width: 2560, Height: 1440}},
	ResolutionType3MP43:    {Name: ResolutionType3MP43, Title: "3MP (4:3)", AspectRatio: AspectRatio43, Pixels: ResolutionPixels{Width: 2048, Height: 1536}},
	ResolutionTypeSquare:   {Name: ResolutionTypeSquare, Title: "Square", AspectRatio: AspectRatio11, Pixels: ResolutionPixels{Width: 2160, Height: 2160}},
	ResolutionType4KUHD:    {Name: ResolutionType4KUHD, Title: "4K UHD", AspectRatio: AspectRatio169, Pixels: ResolutionPixels{Width: 3840, Height: 2160}},
}

// GetAllResolutions returns every named resolution ordered by pixel count.
func GetAllResolutions() []Resolution {
	all := make([]Resolution, 0, len(resolutions))
	for _, res := range resolutions {
		all = append(all, res)
	}
	sort.Slice(all, func(i, j int) bool {
		pi := all[i].Pixels.Width * all[i].Pixels.Height
		pj := all[j].Pixels.Width * all[j].Pixels.Height
		if pi != pj {
			return pi < pj
		}
		return all[i].Name < all[j].Name
	})
	return all
}

// LookupResolution resolves a case-insensitive alias such as "1080p" or "4K".
func LookupResolution(name string) (Resolution, bool) {
	res, ok := resolutions[ResolutionType(strings.ToLower(strings.TrimSpace(name)))]
	return res, ok
}

// GetHighestResolutionUnderDimensions retrieves the highest resolution that fits inside
// the given width and height.
//
// Arguments:
//   - width: The maximum possible width of the image.
//   - height: The maximum possible height of the image.
//
// Returns:
//   - Resolution: The highest resolution that is under the given width and height.
//   - bool: True if a resolution was found, otherwise false.
func GetHighestResolutionUnderDimensions(width, height int) (Resolution, bool) {
	var highest Resolution
	var found bool

	for _, res := range GetAllResolutions() {
		if res.Pixels.Width <= width && res.Pixels.Height <= height {
			if !found || res.GetMegaPixels() >= highest.GetMegaPixels() {
				highest = res
				found = true
			}
		}
	}
	return highest, found
}
