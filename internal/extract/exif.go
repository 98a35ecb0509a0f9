package extract

import (
	"encoding/binary"
	"fmt"
)

// EXIF tag IDs this reader understands. Only a handful of tags matter
// for the image extractor's EXIF pass: orientation, the
// Exif sub-IFD pointer (for capture time), and the GPS IFD pointer (for
// the GPS tags that seed image labels before captioning augments them).
const (
	tagOrientation  = 0x0112
	tagDateTimeOrig = 0x9003
	tagExifIFD      = 0x8769
	tagGPSIFD       = 0x8825
	tagGPSLatRef    = 0x0001
	tagGPSLat       = 0x0002
	tagGPSLonRef    = 0x0003
	tagGPSLon       = 0x0004
)

// exifResult is the best-effort subset of EXIF metadata readEXIF
// recovers from a JPEG's APP1 segment.
type exifResult struct {
	Orientation int
	DateTime    string
	HasGPS      bool
	GPSLabel    string // e.g. "gps:40.7128,-74.0060"
}

// readEXIF scans a JPEG byte stream for an APP1 "Exif" segment and
// parses the handful of TIFF IFD0/GPS-IFD tags the image summary uses.
// It never returns an error: malformed or absent EXIF data simply
// yields a zero-value result, matching the extractor's "never abort"
// contract.
func readEXIF(data []byte) exifResult {
	seg := findAPP1Exif(data)
	if seg == nil {
		return exifResult{}
	}

	order, ifd0Offset, ok := tiffHeader(seg)
	if !ok {
		return exifResult{}
	}

	entries := readIFD(seg, order, ifd0Offset)

	var res exifResult
	for _, e := range entries {
		switch e.tag {
		case tagOrientation:
			if v, ok := shortValue(seg, order, e); ok {
				res.Orientation = int(v)
			}
		case tagExifIFD:
			if off, ok := longValue(order, e); ok {
				for _, se := range readIFD(seg, order, int(off)) {
					if se.tag == tagDateTimeOrig {
						res.DateTime = asciiValue(seg, order, se)
					}
				}
			}
		case tagGPSIFD:
			if off, ok := longValue(order, e); ok {
				lat, lon, found := readGPS(seg, order, int(off))
				if found {
					res.HasGPS = true
					res.GPSLabel = fmt.Sprintf("gps:%.4f,%.4f", lat, lon)
				}
			}
		}
	}

	return res
}

// findAPP1Exif scans JPEG markers for the first APP1 segment carrying
// an "Exif\x00\x00" header and returns the TIFF payload that follows,
// or nil if data isn't a JPEG or carries no EXIF segment.
func findAPP1Exif(data []byte) []byte {
	if len(data) < 4 || data[0] != 0xFF || data[1] != 0xD8 {
		return nil
	}
	i := 2
	for i+4 <= len(data) {
		if data[i] != 0xFF {
			i++
			continue
		}
		marker := data[i+1]
		if marker == 0xD8 || marker == 0xD9 {
			i += 2
			continue
		}
		if marker == 0x01 || (marker >= 0xD0 && marker <= 0xD7) {
			i += 2
			continue
		}
		if i+4 > len(data) {
			break
		}
		length := int(binary.BigEndian.Uint16(data[i+2 : i+4]))
		segStart := i + 4
		segEnd := i + 2 + length
		if segEnd > len(data) || length < 2 {
			break
		}
		if marker == 0xE1 && segEnd-segStart >= 6 && string(data[segStart:segStart+6]) == "Exif\x00\x00" {
			return data[segStart+6 : segEnd]
		}
		if marker == 0xDA {
			break // start of scan: no more markers follow
		}
		i = segEnd
	}
	return nil
}

// tiffHeader reads the byte-order marker and the offset to IFD0.
func tiffHeader(tiff []byte) (binary.ByteOrder, int, bool) {
	if len(tiff) < 8 {
		return nil, 0, false
	}
	var order binary.ByteOrder
	switch string(tiff[0:2]) {
	case "II":
		order = binary.LittleEndian
	case "MM":
		order = binary.BigEndian
	default:
		return nil, 0, false
	}
	offset := int(order.Uint32(tiff[4:8]))
	return order, offset, true
}

// ifdEntry is one raw 12-byte TIFF IFD entry.
type ifdEntry struct {
	tag      uint16
	typ      uint16
	count    uint32
	rawValue [4]byte
}

// readIFD parses the IFD at offset within tiff, returning its entries.
// Out-of-range offsets yield no entries rather than panicking.
func readIFD(tiff []byte, order binary.ByteOrder, offset int) []ifdEntry {
	if offset <= 0 || offset+2 > len(tiff) {
		return nil
	}
	count := int(order.Uint16(tiff[offset : offset+2]))
	entries := make([]ifdEntry, 0, count)
	base := offset + 2
	for i := 0; i < count; i++ {
		start := base + i*12
		if start+12 > len(tiff) {
			break
		}
		var e ifdEntry
		e.tag = order.Uint16(tiff[start : start+2])
		e.typ = order.Uint16(tiff[start+2 : start+4])
		e.count = order.Uint32(tiff[start+4 : start+8])
		copy(e.rawValue[:], tiff[start+8:start+12])
		entries = append(entries, e)
	}
	return entries
}

// shortValue interprets a SHORT-typed entry's inline value.
func shortValue(tiff []byte, order binary.ByteOrder, e ifdEntry) (uint16, bool) {
	if e.typ != 3 {
		return 0, false
	}
	return order.Uint16(e.rawValue[0:2]), true
}

// longValue interprets a LONG-typed entry's inline value (used for IFD
// pointer tags, which are always LONG).
func longValue(order binary.ByteOrder, e ifdEntry) (uint32, bool) {
	if e.typ != 4 {
		return 0, false
	}
	return order.Uint32(e.rawValue[:]), true
}

// asciiValue dereferences an ASCII-typed entry's offset into tiff and
// trims the trailing NUL.
func asciiValue(tiff []byte, order binary.ByteOrder, e ifdEntry) string {
	if e.typ != 2 || e.count == 0 {
		return ""
	}
	n := int(e.count)
	if n <= 4 {
		s := string(e.rawValue[:n])
		return trimNUL(s)
	}
	off := int(order.Uint32(e.rawValue[:]))
	if off < 0 || off+n > len(tiff) {
		return ""
	}
	return trimNUL(string(tiff[off : off+n]))
}

func trimNUL(s string) string {
	for i, r := range s {
		if r == 0 {
			return s[:i]
		}
	}
	return s
}

// rational is a TIFF RATIONAL: numerator/denominator.
type rational struct{ num, den uint32 }

// readRationals dereferences a RATIONAL-typed entry's offset and reads
// count 8-byte (numerator,denominator) pairs.
func readRationals(tiff []byte, order binary.ByteOrder, e ifdEntry) []rational {
	if e.typ != 5 || e.count == 0 {
		return nil
	}
	off := int(order.Uint32(e.rawValue[:]))
	out := make([]rational, 0, e.count)
	for i := 0; i < int(e.count); i++ {
		start := off + i*8
		if start+8 > len(tiff) {
			break
		}
		out = append(out, rational{
			num: order.Uint32(tiff[start : start+4]),
			den: order.Uint32(tiff[start+4 : start+8]),
		})
	}
	return out
}

// readGPS parses the GPS IFD at offset, returning decimal-degree
// latitude/longitude when both ref and coordinate tags are present.
func readGPS(tiff []byte, order binary.ByteOrder, offset int) (lat, lon float64, ok bool) {
	entries := readIFD(tiff, order, offset)
	var latRef, lonRef string
	var latRationals, lonRationals []rational

	for _, e := range entries {
		switch e.tag {
		case tagGPSLatRef:
			latRef = trimNUL(string(e.rawValue[:1]))
		case tagGPSLonRef:
			lonRef = trimNUL(string(e.rawValue[:1]))
		case tagGPSLat:
			latRationals = readRationals(tiff, order, e)
		case tagGPSLon:
			lonRationals = readRationals(tiff, order, e)
		}
	}

	if len(latRationals) != 3 || len(lonRationals) != 3 {
		return 0, 0, false
	}

	lat = dmsToDecimal(latRationals)
	lon = dmsToDecimal(lonRationals)
	if latRef == "S" {
		lat = -lat
	}
	if lonRef == "W" {
		lon = -lon
	}
	return lat, lon, true
}

// dmsToDecimal converts a (degrees, minutes, seconds) rational triple
// into decimal degrees.
func dmsToDecimal(r []rational) float64 {
	deg := ratioFloat(r[0])
	min := ratioFloat(r[1])
	sec := ratioFloat(r[2])
	return deg + min/60 + sec/3600
}

func ratioFloat(r rational) float64 {
	if r.den == 0 {
		return 0
	}
	return float64(r.num) / float64(r.den)
}
