// Package axona extracts a DacqUSB-compatible .pos position-tracking file
// straight from a raw Axona recording (.bin packet stream plus its .set
// parameter file), so tracking is recoverable for trials where DacqUSB
// never wrote one.
package axona

import (
	"bufio"
	"encoding/binary"
	"encoding/csv"
	"fmt"
	"math"
	"os"
	"strconv"
	"strings"
)

const (
	packetSize      = 432 // One Axona USB packet.
	packetID        = "ADU2"
	posSampleOffset = 12 // Position payload within a packet.
	posSampleLen    = 20
	cameraRateHz    = 50 // Camera sample rate, fixed by the hardware.
)

// .set line numbers the header fields are scraped from (DacqUSB layout).
const (
	setLineDuration    = 4
	setLineWindowMinX  = 1059
	setLineWindowMaxX  = 1060
	setLineWindowMinY  = 1061
	setLineWindowMaxY  = 1062
	setLinePixPerMetre = 1099
	setLineBearing1    = 1420
)

// PosSample is one decoded tracking sample. Coordinates are in camera
// pixels; two LEDs are tracked per sample.
type PosSample struct {
	PacketNum uint16
	Timestamp uint16
	X1, Y1    uint16
	X2, Y2    uint16
	NumPix1   uint16
	NumPix2   uint16
	TotalPix  uint16

	raw [posSampleLen]byte // Byte-corrected, x/y-ordered form written to the .pos file.
}

// ExtractPos reads <path>.set and <path>.bin and writes <path>.pos plus a
// decoded <path>_pos.csv next to them. path carries the trial name but no
// extension; both inputs must live in the same directory.
func ExtractPos(path string) error {
	header, err := buildHeader(path + ".set")
	if err != nil {
		return err
	}
	samples, err := readSamples(path + ".bin")
	if err != nil {
		return err
	}
	if err := writePos(path+".pos", header, samples); err != nil {
		return err
	}
	return writeCSV(path+"_pos.csv", samples)
}

// buildHeader assembles the .pos header from the .set file. Most geometry
// lines are fixed by the DacqUSB defaults; the tracked window, colour
// bearings and pixel scale are copied from their fixed .set line numbers.
func buildHeader(setPath string) ([]string, error) {
	data, err := os.ReadFile(setPath)
	if err != nil {
		return nil, err
	}
	lines := strings.Split(strings.ReplaceAll(string(data), "\r\n", "\n"), "\n")
	if len(lines) <= setLineBearing1+3 {
		return nil, fmt.Errorf("%s: truncated .set file (%d lines)", setPath, len(lines))
	}

	// DacqUSB rounds the trial duration to a whole number of seconds.
	durRaw := strings.TrimSpace(cut(lines[setLineDuration], 9))
	durF, err := strconv.ParseFloat(durRaw, 64)
	if err != nil {
		return nil, fmt.Errorf("%s: bad duration %q: %v", setPath, durRaw, err)
	}
	duration := int(math.Round(durF))

	header := []string{
		lines[0],
		lines[1],
		lines[2],
		lines[3],
		lines[setLineDuration][:9] + strconv.Itoa(duration) + "       ",
		lines[5],
		"num_colours 4",
		"min_x 0",
		"max_x 768",
		"min_y 0",
		"max_y 574",
		"window_min_x " + cut(lines[setLineWindowMinX], 5),
		"window_max_x " + cut(lines[setLineWindowMaxX], 5),
		"window_min_y " + cut(lines[setLineWindowMinY], 5),
		"window_max_y " + cut(lines[setLineWindowMaxY], 5),
		"timebase 50 hz",
		"bytes_per_timestamp 4",
		"sample_rate 50.0 hz",
		"EEG_samples_per_position 5",
		"bearing_colour_1 " + cut(lines[setLineBearing1], 15),
		"bearing_colour_2 " + cut(lines[setLineBearing1+1], 15),
		"bearing_colour_3 " + cut(lines[setLineBearing1+2], 15),
		"bearing_colour_4 " + cut(lines[setLineBearing1+3], 15),
		"pos_format t,x1,y1,x2,y2,numpix1,numpix2",
		"bytes_per_coord 2",
		"pixels_per_metre " + cut(lines[setLinePixPerMetre], 25),
		"num_pos_samples " + strconv.Itoa(duration*cameraRateHz) + "     ",
	}
	return header, nil
}

// cut drops the first n characters of a line, tolerating short lines.
func cut(line string, n int) string {
	if len(line) < n {
		return ""
	}
	return line[n:]
}

// readSamples scans the .bin packet stream for ADU2 packets and decodes
// their position payloads. The first packet is skipped (known to be
// unreliable), and every second sample is dropped because position data is
// double-counted in the .bin stream.
func readSamples(binPath string) ([]PosSample, error) {
	data, err := os.ReadFile(binPath)
	if err != nil {
		return nil, err
	}

	var all []PosSample
	for off := packetSize; off < len(data)-packetSize; off += packetSize {
		packet := data[off : off+packetSize]
		if string(packet[0:4]) != packetID {
			continue
		}
		all = append(all, decodeSample(packet[posSampleOffset:posSampleOffset+posSampleLen]))
	}

	kept := make([]PosSample, 0, (len(all)+1)/2)
	for i := 0; i < len(all); i += 2 {
		kept = append(kept, all[i])
	}
	return kept, nil
}

// decodeSample converts one 20-byte payload. On disk the 16-bit words are
// byte-flipped relative to the .pos format, and the x/y word pairs arrive
// as y,x; both are corrected here.
func decodeSample(payload []byte) PosSample {
	var s PosSample
	copy(s.raw[:], payload)
	for i := 0; i < posSampleLen; i += 2 {
		s.raw[i], s.raw[i+1] = s.raw[i+1], s.raw[i]
	}

	s.PacketNum = binary.BigEndian.Uint16(s.raw[0:2])
	s.Timestamp = binary.BigEndian.Uint16(s.raw[2:4])
	s.Y1 = binary.BigEndian.Uint16(s.raw[4:6])
	s.X1 = binary.BigEndian.Uint16(s.raw[6:8])
	s.Y2 = binary.BigEndian.Uint16(s.raw[8:10])
	s.X2 = binary.BigEndian.Uint16(s.raw[10:12])
	s.NumPix1 = binary.BigEndian.Uint16(s.raw[12:14])
	s.NumPix2 = binary.BigEndian.Uint16(s.raw[14:16])
	s.TotalPix = binary.BigEndian.Uint16(s.raw[16:18])

	// Reorder the raw words to t,x1,y1,x2,y2 as the .pos format expects.
	binary.BigEndian.PutUint16(s.raw[4:6], s.X1)
	binary.BigEndian.PutUint16(s.raw[6:8], s.Y1)
	binary.BigEndian.PutUint16(s.raw[8:10], s.X2)
	binary.BigEndian.PutUint16(s.raw[10:12], s.Y2)
	return s
}

func writePos(path string, header []string, samples []PosSample) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	w := bufio.NewWriter(f)
	for _, line := range header {
		if _, err := w.WriteString(line + "\r\n"); err != nil {
			return err
		}
	}
	if _, err := w.WriteString("data_start"); err != nil {
		return err
	}
	for i := range samples {
		if _, err := w.Write(samples[i].raw[:]); err != nil {
			return err
		}
	}
	if _, err := w.WriteString("\r\ndata_end\r\n"); err != nil {
		return err
	}
	if err := w.Flush(); err != nil {
		return err
	}
	return f.Close()
}

func writeCSV(path string, samples []PosSample) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if err := w.Write([]string{
		"Packet Number", "Timestamps", "X1", "X2", "Y1", "Y2",
		"Pixels LED 1", "Pixels LED 2", "Total Pixels",
	}); err != nil {
		return err
	}
	for _, s := range samples {
		row := []string{
			strconv.Itoa(int(s.PacketNum)), strconv.Itoa(int(s.Timestamp)),
			strconv.Itoa(int(s.X1)), strconv.Itoa(int(s.X2)),
			strconv.Itoa(int(s.Y1)), strconv.Itoa(int(s.Y2)),
			strconv.Itoa(int(s.NumPix1)), strconv.Itoa(int(s.NumPix2)),
			strconv.Itoa(int(s.TotalPix)),
		}
		if err := w.Write(row); err != nil {
			return err
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return err
	}
	return f.Close()
}
