package extract

import (
	"bytes"
	"encoding/binary"
	"testing"
)

// buildTestJPEGWithEXIF assembles a minimal JPEG byte stream carrying a
// single APP1 "Exif" segment: little-endian TIFF header, an IFD0 with
// an Orientation tag and a GPS IFD pointer, and a GPS IFD with a
// latitude/longitude pair — just enough structure for readEXIF to
// exercise its IFD-walking and rational-to-decimal conversion.
func buildTestJPEGWithEXIF(t *testing.T) []byte {
	t.Helper()

	var tiff bytes.Buffer
	tiff.WriteString("II")
	binary.Write(&tiff, binary.LittleEndian, uint16(42))
	binary.Write(&tiff, binary.LittleEndian, uint32(8)) // IFD0 offset

	// IFD0: Orientation (SHORT) + GPSInfo pointer (LONG).
	binary.Write(&tiff, binary.LittleEndian, uint16(2)) // entry count
	writeIFDEntry(&tiff, 0x0112, 3, 1, 3)                // Orientation = 3
	writeIFDEntry(&tiff, 0x8825, 4, 1, 38)                // GPSInfo IFD at offset 38
	binary.Write(&tiff, binary.LittleEndian, uint32(0))  // next IFD

	if tiff.Len() != 38 {
		t.Fatalf("IFD0 layout drifted: tiff.Len() = %d, want 38", tiff.Len())
	}

	// GPS IFD at offset 38: LatRef, Lat, LonRef, Lon.
	binary.Write(&tiff, binary.LittleEndian, uint16(4))
	writeIFDEntryASCII(&tiff, 0x0001, "N")
	writeIFDEntry(&tiff, 0x0002, 5, 3, 92) // GPSLatitude rationals at offset 92
	writeIFDEntryASCII(&tiff, 0x0003, "W")
	writeIFDEntry(&tiff, 0x0004, 5, 3, 116) // GPSLongitude rationals at offset 116
	binary.Write(&tiff, binary.LittleEndian, uint32(0))

	if tiff.Len() != 92 {
		t.Fatalf("GPS IFD layout drifted: tiff.Len() = %d, want 92", tiff.Len())
	}

	writeRational(&tiff, 40, 1) // latitude degrees
	writeRational(&tiff, 42, 1) // minutes
	writeRational(&tiff, 46, 1) // seconds -> ~40.7128 N

	writeRational(&tiff, 74, 1) // longitude degrees
	writeRational(&tiff, 0, 1)  // minutes
	writeRational(&tiff, 22, 1) // seconds -> ~74.0061 W

	var out bytes.Buffer
	out.Write([]byte{0xFF, 0xD8}) // SOI
	out.Write([]byte{0xFF, 0xE1})
	segLen := uint16(2 + 6 + tiff.Len())
	binary.Write(&out, binary.BigEndian, segLen)
	out.WriteString("Exif\x00\x00")
	out.Write(tiff.Bytes())
	out.Write([]byte{0xFF, 0xD9}) // EOI
	return out.Bytes()
}

func writeIFDEntry(buf *bytes.Buffer, tag, typ uint16, count, value uint32) {
	binary.Write(buf, binary.LittleEndian, tag)
	binary.Write(buf, binary.LittleEndian, typ)
	binary.Write(buf, binary.LittleEndian, count)
	binary.Write(buf, binary.LittleEndian, value)
}

func writeIFDEntryASCII(buf *bytes.Buffer, tag uint16, s string) {
	binary.Write(buf, binary.LittleEndian, tag)
	binary.Write(buf, binary.LittleEndian, uint16(2)) // ASCII
	binary.Write(buf, binary.LittleEndian, uint32(2)) // "X\0"
	var val [4]byte
	copy(val[:], s)
	buf.Write(val[:])
}

func writeRational(buf *bytes.Buffer, num, den uint32) {
	binary.Write(buf, binary.LittleEndian, num)
	binary.Write(buf, binary.LittleEndian, den)
}

func TestReadEXIFOrientationAndGPS(t *testing.T) {
	data := buildTestJPEGWithEXIF(t)
	res := readEXIF(data)

	if res.Orientation != 3 {
		t.Errorf("Orientation = %d, want 3", res.Orientation)
	}
	if !res.HasGPS {
		t.Fatal("expected GPS tags to be recognized")
	}
	if res.GPSLabel != "gps:40.7128,-74.0061" {
		t.Errorf("GPSLabel = %q, want gps:40.7128,-74.0061", res.GPSLabel)
	}
}

func TestReadEXIFNonJPEGIsEmpty(t *testing.T) {
	res := readEXIF([]byte("not a jpeg at all"))
	if res.Orientation != 0 || res.HasGPS {
		t.Errorf("res = %+v, want zero value for non-JPEG input", res)
	}
}

func TestReadEXIFJPEGWithoutAPP1IsEmpty(t *testing.T) {
	plain := []byte{0xFF, 0xD8, 0xFF, 0xD9}
	res := readEXIF(plain)
	if res.Orientation != 0 || res.HasGPS {
		t.Errorf("res = %+v, want zero value for a JPEG with no APP1 segment", res)
	}
}
