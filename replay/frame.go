package replay

import (
	"bufio"
	"encoding/binary"
	"io"
	"math"

	"github.com/google/uuid"

	"github.com/tachyon-beep/murk/core"
)

// Magic identifies a Murk replay stream; it is the first four bytes of
// every file/stream this package writes.
var Magic = [4]byte{'M', 'U', 'R', 'K'}

// FormatVersion is the current frame format version (spec §6).
const FormatVersion uint8 = 3

// Bounds decoders MUST enforce before allocating (spec §6: "Decoders MUST
// enforce maximum lengths ... before allocating, returning MalformedFrame
// otherwise").
const (
	MaxCommandsPerFrame = 1_000_000
	MaxStringLen        = 1 << 20  // 1 MiB
	MaxBlobLen          = 64 << 20 // 64 MiB

	// MaxCoordDims bounds a single command's coordinate dimensionality.
	// Murk spaces never exceed a handful of dimensions even under Product
	// composition; this is a decode-time sanity bound, not a domain limit.
	MaxCoordDims = 64
)

// Frame is one recorded tick: the commands admitted that tick plus the
// resulting snapshot hash (spec §4.9, §6).
type Frame struct {
	TickId           core.TickId
	ParameterVersion core.ParameterVersion
	Commands         []*core.Command
	SnapshotHash     uint64
}

// Writer appends frames to an underlying stream, writing the magic header,
// format version byte, and a run id exactly once on the first Write call.
// Writers MUST flush on drop (spec §6); callers should always call Close.
type Writer struct {
	w           *bufio.Writer
	underlying  io.Writer
	runId       uuid.UUID
	wroteHeader bool
}

// NewWriter wraps w, tagging the stream with runId — a caller-supplied
// identifier distinguishing this recording from others in the same
// dataset (spec §6 names no format for this; grounded on dm-vev-adamant's
// use of google/uuid for world-instance identifiers, repurposed here as a
// per-recording tag rather than a per-entity one). Nothing is written
// until the first Write call.
func NewWriter(w io.Writer, runId uuid.UUID) *Writer {
	return &Writer{w: bufio.NewWriter(w), underlying: w, runId: runId}
}

func (rw *Writer) writeHeader() error {
	if rw.wroteHeader {
		return nil
	}
	if _, err := rw.w.Write(Magic[:]); err != nil {
		return err
	}
	if err := rw.w.WriteByte(FormatVersion); err != nil {
		return err
	}
	runIdBytes, err := rw.runId.MarshalBinary()
	if err != nil {
		return err
	}
	if _, err := rw.w.Write(runIdBytes); err != nil {
		return err
	}
	rw.wroteHeader = true
	return nil
}

// Write encodes one frame to the stream.
func (rw *Writer) Write(f Frame) error {
	if err := rw.writeHeader(); err != nil {
		return err
	}
	var buf [8]byte

	binary.LittleEndian.PutUint64(buf[:], uint64(f.TickId))
	if _, err := rw.w.Write(buf[:]); err != nil {
		return err
	}
	binary.LittleEndian.PutUint64(buf[:], uint64(f.ParameterVersion))
	if _, err := rw.w.Write(buf[:]); err != nil {
		return err
	}
	binary.LittleEndian.PutUint32(buf[:4], uint32(len(f.Commands)))
	if _, err := rw.w.Write(buf[:4]); err != nil {
		return err
	}
	for _, cmd := range f.Commands {
		if err := writeCommand(rw.w, cmd); err != nil {
			return err
		}
	}
	binary.LittleEndian.PutUint64(buf[:], f.SnapshotHash)
	if _, err := rw.w.Write(buf[:]); err != nil {
		return err
	}
	return nil
}

// Flush forces any buffered bytes out to the underlying writer.
func (rw *Writer) Flush() error { return rw.w.Flush() }

// Close flushes the writer. It does not close the underlying io.Writer.
func (rw *Writer) Close() error { return rw.Flush() }

func writeCommand(w *bufio.Writer, cmd *core.Command) error {
	var buf [8]byte

	if err := w.WriteByte(byte(cmd.Payload)); err != nil {
		return err
	}
	switch cmd.Payload {
	case core.PayloadSetField:
		binary.LittleEndian.PutUint32(buf[:4], uint32(len(cmd.SetField.Coord)))
		if _, err := w.Write(buf[:4]); err != nil {
			return err
		}
		for _, c := range cmd.SetField.Coord {
			binary.LittleEndian.PutUint32(buf[:4], uint32(c))
			if _, err := w.Write(buf[:4]); err != nil {
				return err
			}
		}
		binary.LittleEndian.PutUint32(buf[:4], uint32(cmd.SetField.Field))
		if _, err := w.Write(buf[:4]); err != nil {
			return err
		}
		binary.LittleEndian.PutUint64(buf[:], math.Float64bits(cmd.SetField.Value))
		if _, err := w.Write(buf[:]); err != nil {
			return err
		}
	case core.PayloadSetParameter:
		binary.LittleEndian.PutUint32(buf[:4], uint32(cmd.SetParameter.Key))
		if _, err := w.Write(buf[:4]); err != nil {
			return err
		}
		binary.LittleEndian.PutUint64(buf[:], math.Float64bits(cmd.SetParameter.Value))
		if _, err := w.Write(buf[:]); err != nil {
			return err
		}
	}

	binary.LittleEndian.PutUint64(buf[:], uint64(cmd.ExpiresAfterTick))
	if _, err := w.Write(buf[:]); err != nil {
		return err
	}
	if err := writeOptionalU64(w, cmd.SourceId); err != nil {
		return err
	}
	if err := writeOptionalU64(w, cmd.SourceSeq); err != nil {
		return err
	}
	if err := w.WriteByte(byte(cmd.PriorityClass)); err != nil {
		return err
	}
	binary.LittleEndian.PutUint64(buf[:], cmd.ArrivalSeq)
	if _, err := w.Write(buf[:]); err != nil {
		return err
	}
	return nil
}

func writeOptionalU64(w *bufio.Writer, v *uint64) error {
	var buf [9]byte
	if v == nil {
		buf[0] = 0
		_, err := w.Write(buf[:1])
		return err
	}
	buf[0] = 1
	binary.LittleEndian.PutUint64(buf[1:], *v)
	_, err := w.Write(buf[:])
	return err
}

// Reader decodes frames previously written by Writer. ReadHeader must be
// called once before the first ReadFrame.
type Reader struct {
	r *bufio.Reader
}

// NewReader wraps r.
func NewReader(r io.Reader) *Reader {
	return &Reader{r: bufio.NewReader(r)}
}

// ReadHeader validates the magic header and format version and returns
// the stream's run id. It must be called exactly once, before any
// ReadFrame call.
func (rr *Reader) ReadHeader() (uuid.UUID, error) {
	var hdr [4]byte
	if _, err := io.ReadFull(rr.r, hdr[:]); err != nil {
		return uuid.UUID{}, err
	}
	if hdr != Magic {
		return uuid.UUID{}, core.NewError(core.KindInvalidMagic, "replay stream does not start with the murk magic header")
	}
	version, err := rr.r.ReadByte()
	if err != nil {
		return uuid.UUID{}, err
	}
	if version != FormatVersion {
		return uuid.UUID{}, core.NewError(core.KindUnsupportedVersion, "replay stream format version is not supported")
	}
	var runIdBytes [16]byte
	if _, err := io.ReadFull(rr.r, runIdBytes[:]); err != nil {
		return uuid.UUID{}, unexpectedEOF(err)
	}
	runId, err := uuid.FromBytes(runIdBytes[:])
	if err != nil {
		return uuid.UUID{}, core.NewError(core.KindMalformedFrame, "replay stream run id is not a valid uuid")
	}
	return runId, nil
}

// ReadFrame decodes the next frame, or returns io.EOF when the stream is
// exhausted cleanly. Every length read that bounds a subsequent allocation
// is checked against its documented maximum before any allocation happens
// (spec §6).
func (rr *Reader) ReadFrame() (Frame, error) {
	var f Frame
	var buf [8]byte

	if _, err := io.ReadFull(rr.r, buf[:]); err != nil {
		return f, err // io.EOF propagates as the clean end-of-stream signal
	}
	f.TickId = core.TickId(binary.LittleEndian.Uint64(buf[:]))

	if _, err := io.ReadFull(rr.r, buf[:]); err != nil {
		return f, unexpectedEOF(err)
	}
	f.ParameterVersion = core.ParameterVersion(binary.LittleEndian.Uint64(buf[:]))

	if _, err := io.ReadFull(rr.r, buf[:4]); err != nil {
		return f, unexpectedEOF(err)
	}
	count := binary.LittleEndian.Uint32(buf[:4])
	if count > MaxCommandsPerFrame {
		return f, core.NewError(core.KindMalformedFrame, "command_count exceeds the per-frame maximum")
	}

	f.Commands = make([]*core.Command, 0, count)
	for i := uint32(0); i < count; i++ {
		cmd, err := readCommand(rr.r)
		if err != nil {
			return f, err
		}
		f.Commands = append(f.Commands, cmd)
	}

	if _, err := io.ReadFull(rr.r, buf[:]); err != nil {
		return f, unexpectedEOF(err)
	}
	f.SnapshotHash = binary.LittleEndian.Uint64(buf[:])

	return f, nil
}

func unexpectedEOF(err error) error {
	if err == io.EOF {
		return io.ErrUnexpectedEOF
	}
	return err
}

func readCommand(r *bufio.Reader) (*core.Command, error) {
	var buf [8]byte
	cmd := &core.Command{}

	kind, err := r.ReadByte()
	if err != nil {
		return nil, unexpectedEOF(err)
	}
	cmd.Payload = core.PayloadKind(kind)

	switch cmd.Payload {
	case core.PayloadSetField:
		if _, err := io.ReadFull(r, buf[:4]); err != nil {
			return nil, unexpectedEOF(err)
		}
		dims := binary.LittleEndian.Uint32(buf[:4])
		if dims > MaxCoordDims {
			return nil, core.NewError(core.KindMalformedFrame, "coordinate dimensionality exceeds the decodable maximum")
		}
		coord := make(core.Coord, dims)
		for i := range coord {
			if _, err := io.ReadFull(r, buf[:4]); err != nil {
				return nil, unexpectedEOF(err)
			}
			coord[i] = int32(binary.LittleEndian.Uint32(buf[:4]))
		}
		cmd.SetField.Coord = coord

		if _, err := io.ReadFull(r, buf[:4]); err != nil {
			return nil, unexpectedEOF(err)
		}
		cmd.SetField.Field = core.FieldId(binary.LittleEndian.Uint32(buf[:4]))

		if _, err := io.ReadFull(r, buf[:]); err != nil {
			return nil, unexpectedEOF(err)
		}
		cmd.SetField.Value = math.Float64frombits(binary.LittleEndian.Uint64(buf[:]))

	case core.PayloadSetParameter:
		if _, err := io.ReadFull(r, buf[:4]); err != nil {
			return nil, unexpectedEOF(err)
		}
		cmd.SetParameter.Key = core.ParameterKey(binary.LittleEndian.Uint32(buf[:4]))

		if _, err := io.ReadFull(r, buf[:]); err != nil {
			return nil, unexpectedEOF(err)
		}
		cmd.SetParameter.Value = math.Float64frombits(binary.LittleEndian.Uint64(buf[:]))

	default:
		return nil, core.NewError(core.KindMalformedFrame, "unknown command payload kind")
	}

	if _, err := io.ReadFull(r, buf[:]); err != nil {
		return nil, unexpectedEOF(err)
	}
	cmd.ExpiresAfterTick = core.TickId(binary.LittleEndian.Uint64(buf[:]))

	sourceId, err := readOptionalU64(r)
	if err != nil {
		return nil, err
	}
	cmd.SourceId = sourceId

	sourceSeq, err := readOptionalU64(r)
	if err != nil {
		return nil, err
	}
	cmd.SourceSeq = sourceSeq

	pc, err := r.ReadByte()
	if err != nil {
		return nil, unexpectedEOF(err)
	}
	cmd.PriorityClass = core.PriorityClass(pc)

	if _, err := io.ReadFull(r, buf[:]); err != nil {
		return nil, unexpectedEOF(err)
	}
	cmd.ArrivalSeq = binary.LittleEndian.Uint64(buf[:])

	return cmd, nil
}

func readOptionalU64(r *bufio.Reader) (*uint64, error) {
	present, err := r.ReadByte()
	if err != nil {
		return nil, unexpectedEOF(err)
	}
	if present == 0 {
		return nil, nil
	}
	var buf [8]byte
	if _, err := io.ReadFull(r, buf[:]); err != nil {
		return nil, unexpectedEOF(err)
	}
	v := binary.LittleEndian.Uint64(buf[:])
	return &v, nil
}
