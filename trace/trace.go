// Package trace loads and generates micro-op traces for the timing model.
//
// A trace is a text file with one micro-op per line:
//
//	thread class dst src1 src2 imm flags pc [target=0x...] [mispredict]
//
// For example:
//
//	# two dependent adds and a mispredicted branch
//	0 ALU 3 1 2 5 - 0x1000
//	0 ALU 4 3 0 0 - 0x1004
//	0 ALU 15 4 0 0 B 0x1008 target=0x2000 mispredict
//
// flags is "-" or a combination of B (branch) and S (store). Branch lines
// carry the resolved outcome as oracle data: the corrected target and
// whether the frontend's prediction was wrong. Blank lines and lines
// starting with # are skipped.
package trace

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/sarchlab/vixensim/uop"
)

// Record is one trace line: the micro-op plus the branch oracle data that
// rides alongside it. The oracle fields are meaningful only when the
// micro-op is a branch.
type Record struct {
	Op uop.MicroOp

	// BranchTarget is the resolved target of a branch micro-op.
	BranchTarget uint64
	// Mispredict marks a branch micro-op the frontend predicted wrong.
	Mispredict bool
}

// Trace is an ordered micro-op sequence for the two hardware threads.
type Trace struct {
	Records []Record
}

// Count returns the total number of micro-ops in the trace.
func (t *Trace) Count() int {
	return len(t.Records)
}

// CountThread returns the number of micro-ops belonging to one thread.
func (t *Trace) CountThread(thread uop.ThreadID) int {
	n := 0
	for i := range t.Records {
		if t.Records[i].Op.Thread == thread {
			n++
		}
	}
	return n
}

// Load reads a trace file.
func Load(path string) (*Trace, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open trace file: %w", err)
	}
	defer func() { _ = f.Close() }()

	t, err := Parse(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return t, nil
}

// Parse reads a trace from r, failing on the first malformed line.
func Parse(r io.Reader) (*Trace, error) {
	scanner := bufio.NewScanner(r)
	var records []Record

	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		rec, err := parseLine(line)
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", lineNo, err)
		}
		records = append(records, rec)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("reading trace: %w", err)
	}

	return &Trace{Records: records}, nil
}

// parseLine decodes one non-comment trace line.
func parseLine(line string) (Record, error) {
	fields := strings.Fields(line)
	if len(fields) < 8 {
		return Record{}, fmt.Errorf("expected at least 8 fields, got %d", len(fields))
	}

	var rec Record

	thread, err := strconv.ParseUint(fields[0], 10, 8)
	if err != nil {
		return Record{}, fmt.Errorf("bad thread %q: %w", fields[0], err)
	}
	rec.Op.Thread = uop.ThreadID(thread)

	class, err := uop.ParseExecClass(fields[1])
	if err != nil {
		return Record{}, err
	}
	rec.Op.Class = class

	regs := [3]*uint8{&rec.Op.Dst, &rec.Op.Src1, &rec.Op.Src2}
	names := [3]string{"dst", "src1", "src2"}
	for i, reg := range regs {
		v, err := strconv.ParseUint(fields[2+i], 10, 8)
		if err != nil {
			return Record{}, fmt.Errorf("bad %s register %q: %w", names[i], fields[2+i], err)
		}
		*reg = uint8(v)
	}

	imm, err := strconv.ParseUint(fields[5], 0, 64)
	if err != nil {
		return Record{}, fmt.Errorf("bad immediate %q: %w", fields[5], err)
	}
	rec.Op.Imm = imm

	if err := parseFlags(fields[6], &rec.Op); err != nil {
		return Record{}, err
	}

	pc, err := strconv.ParseUint(fields[7], 0, 64)
	if err != nil {
		return Record{}, fmt.Errorf("bad pc %q: %w", fields[7], err)
	}
	rec.Op.PC = pc

	for _, tok := range fields[8:] {
		switch {
		case strings.HasPrefix(tok, "target="):
			target, err := strconv.ParseUint(strings.TrimPrefix(tok, "target="), 0, 64)
			if err != nil {
				return Record{}, fmt.Errorf("bad branch target %q: %w", tok, err)
			}
			rec.BranchTarget = target
		case tok == "mispredict":
			rec.Mispredict = true
		default:
			return Record{}, fmt.Errorf("unknown token %q", tok)
		}
	}

	if rec.Mispredict && !rec.Op.IsBranch {
		return Record{}, fmt.Errorf("mispredict flag on a non-branch micro-op")
	}

	if err := rec.Op.Validate(); err != nil {
		return Record{}, err
	}

	return rec, nil
}

// parseFlags decodes the flags token: "-" for none, or letters B and S.
func parseFlags(s string, op *uop.MicroOp) error {
	if s == "-" {
		return nil
	}
	for _, c := range s {
		switch c {
		case 'B':
			op.IsBranch = true
		case 'S':
			op.IsStore = true
		default:
			return fmt.Errorf("unknown flag %q", string(c))
		}
	}
	return nil
}

// formatRecord renders one record as a trace line.
func formatRecord(rec *Record) string {
	flags := ""
	if rec.Op.IsBranch {
		flags += "B"
	}
	if rec.Op.IsStore {
		flags += "S"
	}
	if flags == "" {
		flags = "-"
	}

	line := fmt.Sprintf("%d %s %d %d %d %d %s 0x%x",
		rec.Op.Thread, rec.Op.Class, rec.Op.Dst, rec.Op.Src1, rec.Op.Src2,
		rec.Op.Imm, flags, rec.Op.PC)

	if rec.Op.IsBranch {
		line += fmt.Sprintf(" target=0x%x", rec.BranchTarget)
		if rec.Mispredict {
			line += " mispredict"
		}
	}
	return line
}

// Format writes the trace in its textual form.
func (t *Trace) Format(w io.Writer) error {
	bw := bufio.NewWriter(w)
	for i := range t.Records {
		if _, err := fmt.Fprintln(bw, formatRecord(&t.Records[i])); err != nil {
			return fmt.Errorf("writing trace: %w", err)
		}
	}
	return bw.Flush()
}

// Save writes the trace to a file.
func (t *Trace) Save(path string) error {
	var sb strings.Builder
	if err := t.Format(&sb); err != nil {
		return err
	}
	if err := os.WriteFile(path, []byte(sb.String()), 0644); err != nil {
		return fmt.Errorf("failed to write trace file: %w", err)
	}
	return nil
}
