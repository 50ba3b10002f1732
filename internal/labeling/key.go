// Package labeling keeps the answers of one labeling session: a sparse
// file × question grid stored as a flat map keyed by (file, question).
package labeling

import "strings"

// FileRef names the file an answer belongs to, or no file at all for
// datasets without files. The zero value is NoFile.
type FileRef struct {
	id  string
	set bool
}

func NoFile() FileRef          { return FileRef{} }
func File(id string) FileRef   { return FileRef{id: id, set: true} }
func (f FileRef) IsFile() bool { return f.set }

// ID returns the file id; "" for NoFile.
func (f FileRef) ID() string { return f.id }

// Ptr returns the wire form: nil for NoFile.
func (f FileRef) Ptr() *string {
	if !f.set {
		return nil
	}
	id := f.id
	return &id
}

// FileRefFromPtr is the inverse of Ptr.
func FileRefFromPtr(p *string) FileRef {
	if p == nil {
		return NoFile()
	}
	return File(*p)
}

func (f FileRef) String() string {
	if !f.set {
		return "<no-file>"
	}
	return f.id
}

// Key addresses one answer cell. Keys are comparable; two keys are equal
// only when both the file reference and the question id are equal.
type Key struct {
	File     FileRef
	Question string
}

func KeyFor(file FileRef, questionID string) Key {
	return Key{File: file, Question: questionID}
}

// Less orders keys file-major: NoFile first, then by file id, then question.
func (k Key) Less(o Key) bool {
	if k.File.set != o.File.set {
		return !k.File.set
	}
	if c := strings.Compare(k.File.id, o.File.id); c != 0 {
		return c < 0
	}
	return k.Question < o.Question
}

// String is for logs only; it is not used as a map key.
func (k Key) String() string { return k.File.String() + "/" + k.Question }
