package vm

import (
	"bytes"
	"context"
	"crypto/sha256"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"

	"github.com/vybium/vybium-crypto/pkg/vybium-crypto/field"

	"github.com/vybium/vybium-fleet-zkvm/internal/vybium-fleet-zkvm/utils"
)

func words(vs ...uint64) [][]byte {
	out := make([][]byte, len(vs))
	for i, v := range vs {
		out[i] = utils.EncodeWord(v)
	}
	return out
}

func journalOf(vs ...uint64) []byte {
	var out []byte
	for _, v := range vs {
		out = append(out, utils.EncodeWord(v)...)
	}
	return out
}

func run(t *testing.T, src string, env Environment) (*Session, error) {
	t.Helper()
	program, err := Assemble(src)
	if err != nil {
		t.Fatalf("Assemble() error = %v", err)
	}
	return NewVMState(program, env).Run(context.Background())
}

type upperModule struct{}

func (upperModule) Ref() ModuleRef { return ModuleRef{Name: "test.upper", Version: 1} }
func (upperModule) Apply(in []byte) ([]byte, error) {
	if len(in) == 0 {
		return nil, errors.New("empty input")
	}
	return bytes.ToUpper(in), nil
}

func TestRunPrograms(t *testing.T) {
	tests := []struct {
		name    string
		src     string
		env     Environment
		journal []byte
	}{
		{
			name:    "add",
			src:     "read_io 2\nadd\nwrite_io 1\nhalt",
			env:     Environment{Public: words(3, 4)},
			journal: journalOf(7),
		},
		{
			name:    "pick moves",
			src:     "push 1\npush 2\npush 3\npick 2\nwrite_io 3\nhalt",
			journal: journalOf(2, 3, 1),
		},
		{
			name:    "swap",
			src:     "push 1\npush 2\nswap 1\nwrite_io 2\nhalt",
			journal: journalOf(2, 1),
		},
		{
			name:    "dup",
			src:     "push 5\npush 6\ndup 1\nwrite_io 3\nhalt",
			journal: journalOf(5, 6, 5),
		},
		{
			name:    "pop",
			src:     "push 5\npush 6\npush 7\npop 2\nwrite_io 1\nhalt",
			journal: journalOf(5),
		},
		{
			name:    "split",
			src:     "push 0x100000002\nsplit\nwrite_io 2\nhalt",
			journal: journalOf(1, 2),
		},
		{
			name:    "div_mod",
			src:     "push 17\npush 5\ndiv_mod\nwrite_io 2\nhalt",
			journal: journalOf(3, 2),
		},
		{
			name:    "lt and eq",
			src:     "push 3\npush 5\nlt\npush 5\npush 3\nlt\npush 4\npush 4\neq\nwrite_io 3\nhalt",
			journal: journalOf(1, 0, 1),
		},
		{
			name:    "bitwise",
			src:     "push 12\npush 10\nand\npush 12\npush 10\nxor\nwrite_io 2\nhalt",
			journal: journalOf(8, 6),
		},
		{
			name:    "negative immediate",
			src:     "push -1\naddi 1\nwrite_io 1\nhalt",
			journal: journalOf(0),
		},
		{
			name:    "invert",
			src:     "push 2\ninvert\npush 2\nmul\nwrite_io 1\nhalt",
			journal: journalOf(1),
		},
		{
			name:    "skiz",
			src:     "push 0\nskiz\npush 9\npush 1\nskiz\npush 2\nwrite_io 1\nhalt",
			journal: journalOf(2),
		},
		{
			name:    "call and return",
			src:     "call main\nhalt\nmain:\n  push 4\n  write_io 1\n  return\nhalt",
			journal: journalOf(4),
		},
		{
			name:    "memory",
			src:     "push 100\npush 7\npush 8\nwrite_mem 2\npush 100\nread_mem 2\npush 500\nread_mem 1\nwrite_io 3\nhalt",
			journal: journalOf(7, 8, 0),
		},
		{
			name:    "divine",
			src:     "divine 1\nread_io 1\nmul\nwrite_io 1\nhalt",
			env:     Environment{Public: words(6), Private: words(7)},
			journal: journalOf(42),
		},
		{
			name:    "commit frame",
			src:     "push 0\necall read\necall commit\nhalt",
			env:     Environment{Public: [][]byte{[]byte("hello")}},
			journal: []byte("hello"),
		},
		{
			name: "concat len word",
			src: `push 0
ecall read
push 1
ecall read
ecall concat
dup 0
ecall commit
ecall len
ecall word
ecall commit
halt`,
			env:     Environment{Public: [][]byte{[]byte("ab")}, Private: [][]byte{[]byte("cd")}},
			journal: append([]byte("abcd"), utils.EncodeWord(4)...),
		},
		{
			name:    "eq_buf",
			src:     "push 0\necall read\npush 0\necall read\necall eq_buf\nwrite_io 1\nhalt",
			env:     Environment{Public: [][]byte{[]byte("x"), []byte("x")}},
			journal: journalOf(1),
		},
		{
			name:    "apply module",
			src:     "push 0\necall read\npush 0\necall apply\necall commit\nhalt",
			env:     Environment{Public: [][]byte{[]byte("fleet")}, Modules: []Module{upperModule{}}},
			journal: []byte("FLEET"),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			session, err := run(t, tt.src, tt.env)
			if err != nil {
				t.Fatalf("Run() error = %v", err)
			}
			if !bytes.Equal(session.Journal, tt.journal) {
				t.Errorf("Journal = %x, want %x", session.Journal, tt.journal)
			}
		})
	}
}

func TestSHA256Syscall(t *testing.T) {
	input := []byte(strings.Repeat("fleet", 40))
	session, err := run(t, "push 0\necall read\necall sha256\necall commit\nhalt",
		Environment{Public: [][]byte{input}})
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	want := sha256.Sum256(input)
	if !bytes.Equal(session.Journal, want[:]) {
		t.Errorf("Journal = %x, want %x", session.Journal, want)
	}
	// 200 bytes need 4 compressions on top of the 5 instruction cycles
	if session.Cycles != 9 {
		t.Errorf("Cycles = %d, want 9", session.Cycles)
	}
}

func TestRunAborts(t *testing.T) {
	tests := []struct {
		name string
		src  string
		env  Environment
		code uint64
	}{
		{"assert", "push 0\nassert\nhalt", Environment{}, 0},
		{"underflow", "add\nhalt", Environment{}, 0},
		{"input exhausted", "read_io 1\nhalt", Environment{}, 0},
		{"non-field word", "read_io 1\nhalt", Environment{Public: words(field.P)}, 0},
		{"short frame", "read_io 1\nhalt", Environment{Public: [][]byte{{1, 2}}}, 0},
		{"invert zero", "push 0\ninvert\nhalt", Environment{}, 0},
		{"division by zero", "push 1\npush 0\ndiv_mod\nhalt", Environment{}, 0},
		{"xor non-u32", "push 0x100000000\npush 1\nxor\nhalt", Environment{}, 0},
		{"return without call", "return\nhalt", Environment{}, 0},
		{"bad handle", "push 3\necall commit\nhalt", Environment{}, 0},
		{"unlinked module", "push 0\necall read\npush 0\necall apply\nhalt", Environment{Public: [][]byte{{1}}}, 0},
		{"module error", "push 0\necall read\npush 0\necall apply\nhalt",
			Environment{Public: [][]byte{{}}, Modules: []Module{upperModule{}}}, 0},
		{"unknown syscall", "ecall 99\nhalt", Environment{}, 0},
		{"abort syscall", "push 0\necall read\necall commit\npush 3\necall abort\nhalt",
			Environment{Public: [][]byte{[]byte("partial")}}, 3},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			session, err := run(t, tt.src, tt.env)
			if session != nil {
				t.Fatal("aborted run returned a session")
			}
			var abort *AbortError
			if !errors.As(err, &abort) {
				t.Fatalf("Run() error = %v, want *AbortError", err)
			}
			if abort.Code != tt.code {
				t.Errorf("Code = %d, want %d", abort.Code, tt.code)
			}
		})
	}
}

func TestCycleLimit(t *testing.T) {
	_, err := run(t, "call spin\nhalt\nspin:\n  recurse\nhalt", Environment{MaxCycles: 100})
	var abort *AbortError
	if !errors.As(err, &abort) {
		t.Fatalf("Run() error = %v, want *AbortError", err)
	}
	if !errors.Is(err, ErrCycleLimit) {
		t.Errorf("error %v does not wrap ErrCycleLimit", err)
	}
	if abort.Cycle != 100 {
		t.Errorf("Cycle = %d, want 100", abort.Cycle)
	}
}

func TestRunCancelled(t *testing.T) {
	program, err := Assemble("call spin\nhalt\nspin:\n  recurse\nhalt")
	if err != nil {
		t.Fatal(err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err = NewVMState(program, Environment{CheckInterval: 1}).Run(ctx)
	if !errors.Is(err, context.Canceled) {
		t.Errorf("Run() error = %v, want context.Canceled", err)
	}
}

func TestTraceCommitment(t *testing.T) {
	program, err := Assemble("read_io 2\nadd\nwrite_io 1\nhalt")
	if err != nil {
		t.Fatal(err)
	}
	runWith := func(key byte) *Session {
		env := Environment{Public: words(3, 4)}
		env.TraceKey[0] = key
		s, err := NewVMState(program, env).Run(context.Background())
		if err != nil {
			t.Fatalf("Run() error = %v", err)
		}
		return s
	}

	a, b, c := runWith(1), runWith(1), runWith(2)
	if !bytes.Equal(a.Trace.Root, b.Trace.Root) {
		t.Error("same key produced different trace roots")
	}
	if bytes.Equal(a.Trace.Root, c.Trace.Root) {
		t.Error("different keys produced the same trace root")
	}
	if !bytes.Equal(a.Journal, c.Journal) {
		t.Error("trace key changed the journal")
	}
	if a.Trace.Height != int(a.Cycles)+1 {
		t.Errorf("Height = %d, want cycles+1 = %d", a.Trace.Height, a.Cycles+1)
	}
	if a.PaddedHeight != 8 {
		t.Errorf("PaddedHeight = %d, want 8", a.PaddedHeight)
	}

	other, err := Assemble("read_io 2\nmul\nwrite_io 1\nhalt")
	if err != nil {
		t.Fatal(err)
	}
	env := Environment{Public: words(3, 4)}
	env.TraceKey[0] = 1
	d, err := NewVMState(other, env).Run(context.Background())
	if err != nil {
		t.Fatalf("Run(other) error = %v", err)
	}
	if bytes.Equal(a.Trace.Root, d.Trace.Root) {
		t.Error("different programs produced the same trace root")
	}
}

func TestConcurrentRuns(t *testing.T) {
	program, err := Assemble("read_io 2\nadd\nwrite_io 1\nhalt")
	if err != nil {
		t.Fatal(err)
	}

	var wg sync.WaitGroup
	errs := make(chan error, 16)
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			s, err := NewVMState(program, Environment{Public: words(uint64(i), 1)}).Run(context.Background())
			if err != nil {
				errs <- err
				return
			}
			if !bytes.Equal(s.Journal, journalOf(uint64(i)+1)) {
				errs <- fmt.Errorf("run %d: journal %x", i, s.Journal)
			}
		}(i)
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		t.Error(err)
	}
}
