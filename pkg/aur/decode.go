package aur

import (
	"encoding/json"
	"io"
	"strconv"
	"strings"

	"github.com/matzehuels/aurgrab/pkg/errors"
)

// Decode reads one aurweb RPC envelope from r and returns its result records
// sorted by name.
//
// The stream is consumed token by token, so records are built while the
// response is still arriving and the outcome does not depend on how the bytes
// were chunked. Unknown keys are ignored.
//
// An envelope whose "type" is "error" yields no records and an error coded
// [errors.ErrCodeServiceError]. A stream that is not a complete JSON object
// yields an error coded [errors.ErrCodeMalformed]. Callers treat both as "no
// results".
func Decode(r io.Reader) ([]*Package, error) {
	dec := json.NewDecoder(r)
	dec.UseNumber()
	d := &decoder{dec: dec}
	return d.run()
}

// frame is one open JSON container.
type frame struct {
	object    bool
	key       string // current key, objects only
	expectKey bool   // next string token is a key
}

type decoder struct {
	dec     *json.Decoder
	stack   []frame
	objects int // open objects; 1 = envelope, 2 = record

	cur *Package
	out []*Package

	started   bool
	isError   bool
	errorText string
}

func (d *decoder) run() ([]*Package, error) {
	for {
		tok, err := d.dec.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return d.fail(err)
		}

		switch v := tok.(type) {
		case json.Delim:
			if err := d.delim(v); err != nil {
				return d.fail(err)
			}
		case string:
			if top := d.top(); top != nil && top.object && top.expectKey {
				top.key = v
				top.expectKey = false
				continue
			}
			d.value(v, false)
		case json.Number:
			d.value(string(v), true)
		case bool:
			d.value(strconv.FormatBool(v), false)
		case nil:
			d.null()
		}

		if d.started && len(d.stack) == 0 {
			break
		}
	}

	if !d.started {
		if d.isError {
			return nil, d.serviceError()
		}
		return nil, errors.New(errors.ErrCodeMalformed, "empty response")
	}
	if len(d.stack) != 0 {
		return d.fail(io.ErrUnexpectedEOF)
	}
	if d.isError {
		return nil, d.serviceError()
	}
	return d.out, nil
}

func (d *decoder) fail(err error) ([]*Package, error) {
	if d.isError {
		return nil, d.serviceError()
	}
	return nil, errors.Wrap(errors.ErrCodeMalformed, err, "decode rpc response")
}

func (d *decoder) serviceError() error {
	msg := d.errorText
	if msg == "" {
		msg = "unknown error"
	}
	return errors.New(errors.ErrCodeServiceError, "%s", msg)
}

func (d *decoder) top() *frame {
	if len(d.stack) == 0 {
		return nil
	}
	return &d.stack[len(d.stack)-1]
}

// parent returns the frame below the top one.
func (d *decoder) parent() *frame {
	if len(d.stack) < 2 {
		return nil
	}
	return &d.stack[len(d.stack)-2]
}

func (d *decoder) delim(v json.Delim) error {
	switch v {
	case '{':
		if !d.started {
			d.started = true
		}
		d.stack = append(d.stack, frame{object: true, expectKey: true})
		d.objects++
		if d.objects == 2 {
			d.cur = &Package{}
		}
	case '[':
		if !d.started {
			return errors.New(errors.ErrCodeMalformed, "response is not a JSON object")
		}
		d.stack = append(d.stack, frame{})
	case '}':
		if d.objects == 2 && d.cur != nil {
			if d.cur.Name != "" && !d.isError {
				d.out = Insert(d.out, d.cur)
			}
			d.cur = nil
		}
		d.objects--
		d.pop()
	case ']':
		d.pop()
	}
	return nil
}

func (d *decoder) pop() {
	d.stack = d.stack[:len(d.stack)-1]
	d.valueDone()
}

func (d *decoder) valueDone() {
	if top := d.top(); top != nil && top.object {
		top.expectKey = true
	}
}

func (d *decoder) null() {
	if top := d.top(); top != nil && top.object && d.objects == 2 && d.cur != nil && top.key == "OutOfDate" {
		d.cur.OutOfDate = false
		d.cur.OutOfDateSince = 0
	}
	d.valueDone()
}

func (d *decoder) value(s string, number bool) {
	defer d.valueDone()

	top := d.top()
	if top == nil {
		return
	}

	switch {
	case d.objects == 1 && top.object:
		d.envelope(top.key, s)
	case d.objects == 2 && top.object && d.cur != nil:
		d.field(top.key, s, number)
	case d.objects == 2 && !top.object && d.cur != nil:
		if p := d.parent(); p != nil && p.object {
			d.listItem(p.key, s)
		}
	}
}

func (d *decoder) envelope(key, s string) {
	switch key {
	case "type":
		if s == "error" {
			d.isError = true
		}
	case "error":
		d.errorText = s
	}
}

func (d *decoder) field(key, s string, number bool) {
	p := d.cur
	switch key {
	case "ID":
		p.ID = atoi(s)
	case "Name":
		p.Name = s
	case "PackageBaseID":
		p.PackageBaseID = atoi(s)
	case "PackageBase":
		p.PackageBase = s
	case "Version":
		p.Version = s
	case "Description":
		p.Description = s
	case "URL":
		p.URL = s
	case "URLPath":
		p.URLPath = s
	case "Maintainer":
		p.Maintainer = s
	case "License":
		p.License = appendUnique(p.License, s)
	case "NumVotes":
		p.NumVotes = atoi(s)
	case "Popularity":
		p.Popularity, _ = strconv.ParseFloat(s, 64)
	case "CategoryID":
		p.CategoryID = atoi(s)
	case "OutOfDate":
		if number {
			p.OutOfDateSince, _ = strconv.ParseInt(s, 10, 64)
			p.OutOfDate = p.OutOfDateSince != 0
		} else {
			p.OutOfDate = s == "1" || s == "true"
		}
	case "FirstSubmitted":
		p.FirstSubmitted, _ = strconv.ParseInt(s, 10, 64)
	case "LastModified":
		p.LastModified, _ = strconv.ParseInt(s, 10, 64)
	}
}

var listKeys = map[string]Field{
	"Depends":      FieldDepends,
	"MakeDepends":  FieldMakeDepends,
	"CheckDepends": FieldCheckDepends,
	"OptDepends":   FieldOptDepends,
	"Provides":     FieldProvides,
	"Conflicts":    FieldConflicts,
	"Replaces":     FieldReplaces,
}

func (d *decoder) listItem(key, s string) {
	switch key {
	case "License":
		d.cur.License = appendUnique(d.cur.License, s)
		return
	case "Keywords":
		d.cur.Keywords = appendUnique(d.cur.Keywords, s)
		return
	}
	if f, ok := listKeys[key]; ok {
		l := d.cur.List(f)
		*l = appendUnique(*l, s)
	}
}

func atoi(s string) int {
	n, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil {
		return 0
	}
	return n
}

func appendUnique(list []string, s string) []string {
	for _, e := range list {
		if e == s {
			return list
		}
	}
	return append(list, s)
}
