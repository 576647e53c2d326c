package instrument

import (
	"errors"
	"io"
	"os"
	"reflect"
	"strings"
	"testing"
)

// stallReader yields data then fails every further read with err.
type stallReader struct {
	data []byte
	err  error
}

func (r *stallReader) Read(p []byte) (int, error) {
	if len(r.data) == 0 {
		return 0, r.err
	}
	n := copy(p, r.data)
	r.data = r.data[n:]
	return n, nil
}

func Test_readTerminated(t *testing.T) {
	errBoom := errors.New("boom")
	tests := []struct {
		name    string
		r       io.Reader
		term    string
		want    []byte
		wantErr error
	}{
		{"lf", strings.NewReader("abc\ndef\n"), "\n", []byte("abc"), nil},
		{"crlf", strings.NewReader("abc\r\n"), "\r\n", []byte("abc"), nil},
		{"cr is not crlf", strings.NewReader("a\rb\r\n"), "\r\n", []byte("a\rb"), nil},
		{"empty message", strings.NewReader("\n"), "\n", []byte{}, nil},
		{"no terminator reads to end", strings.NewReader("abc"), "", []byte("abc"), nil},
		{"no terminator stops on timeout",
			&stallReader{[]byte("abc"), os.ErrDeadlineExceeded}, "", []byte("abc"), nil},
		{"end of stream", strings.NewReader("abc"), "\n", []byte("abc"), ErrTerminatorNotFound},
		{"timeout", &stallReader{[]byte("ab"), os.ErrDeadlineExceeded}, "\n", []byte("ab"), ErrTerminatorNotFound},
		{"empty read", &stallReader{[]byte("ab"), nil}, "\n", []byte("ab"), ErrTerminatorNotFound},
		{"hard error", &stallReader{[]byte("ab"), errBoom}, "\n", []byte("ab"), errBoom},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := readTerminated(tt.r, tt.term)
			if tt.wantErr == nil && err != nil {
				t.Fatalf("readTerminated() error = %v", err)
			}
			if tt.wantErr != nil && !errors.Is(err, tt.wantErr) {
				t.Fatalf("readTerminated() error = %v, want %v", err, tt.wantErr)
			}
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("readTerminated() = %q, want %q", got, tt.want)
			}
		})
	}
}

func Test_readTerminated_timeoutKind(t *testing.T) {
	_, err := readTerminated(strings.NewReader("abc"), "\n")
	if !errors.Is(err, ErrTimeout) {
		t.Errorf("readTerminated() error = %v, want it to wrap %v", err, ErrTimeout)
	}
}

func Test_readSize(t *testing.T) {
	tests := []struct {
		name    string
		r       io.Reader
		size    int
		want    []byte
		wantErr error
	}{
		{"exact", strings.NewReader("abcdef"), 3, []byte("abc"), nil},
		{"zero", strings.NewReader("abc"), 0, []byte{}, nil},
		{"short stream", strings.NewReader("ab"), 4, []byte("ab"), nil},
		{"timeout", &stallReader{[]byte("ab"), os.ErrDeadlineExceeded}, 4, []byte("ab"), ErrTimeout},
		{"negative", strings.NewReader("ab"), -1, nil, ErrInvalidSize},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := readSize(tt.r, tt.size)
			if tt.wantErr == nil && err != nil {
				t.Fatalf("readSize() error = %v", err)
			}
			if tt.wantErr != nil && !errors.Is(err, tt.wantErr) {
				t.Fatalf("readSize() error = %v, want %v", err, tt.wantErr)
			}
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("readSize() = %q, want %q", got, tt.want)
			}
		})
	}
}

func Test_checkSize(t *testing.T) {
	for _, size := range []int{-1, 0, 10} {
		if err := checkSize(size); err != nil {
			t.Errorf("checkSize(%d) error = %v", size, err)
		}
	}
	if err := checkSize(-2); !errors.Is(err, ErrInvalidSize) {
		t.Errorf("checkSize(-2) error = %v, want %v", err, ErrInvalidSize)
	}
}
