package people

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/google/uuid"
)

// Store gives access to the people file. Every read goes to disk, so
// changes made by other tools are observed immediately. Mutations are
// serialized so that concurrent edits of different fields are not lost.
type Store struct {
	path     string
	profiles ProfileLookup

	mu sync.Mutex
}

// NewStore returns a store backed by the people file at path. The profile
// lookup is optional and is used to resolve Minecraft names to UUIDs.
func NewStore(path string, profiles ProfileLookup) *Store {
	return &Store{path: path, profiles: profiles}
}

// Path returns the location of the people file.
func (s *Store) Path() string {
	return s.path
}

type document struct {
	people []map[string]interface{}
	extra  map[string]interface{}
}

func (s *Store) read() (*document, error) {
	data, err := os.ReadFile(s.path)
	if os.IsNotExist(err) {
		return &document{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("cannot read people file: %v", err)
	}
	var raw interface{}
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("cannot parse people file %s: %v", s.path, err)
	}
	doc := &document{}
	var list []interface{}
	switch v := raw.(type) {
	case []interface{}:
		list = v
	case map[string]interface{}:
		list, _ = v["people"].([]interface{})
		delete(v, "people")
		doc.extra = v
	default:
		return nil, fmt.Errorf("people file %s has unexpected format", s.path)
	}
	for _, item := range list {
		if record, ok := item.(map[string]interface{}); ok {
			doc.people = append(doc.people, record)
		}
	}
	return doc, nil
}

func (s *Store) write(doc *document) error {
	out := make(map[string]interface{}, len(doc.extra)+1)
	for k, v := range doc.extra {
		out[k] = v
	}
	people := doc.people
	if people == nil {
		people = []map[string]interface{}{}
	}
	out["people"] = people
	data, err := json.MarshalIndent(out, "", "    ")
	if err != nil {
		return fmt.Errorf("cannot marshal people file: %v", err)
	}
	return writeFileAtomic(s.path, append(data, '\n'))
}

func writeFileAtomic(path string, data []byte) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".*")
	if err != nil {
		return err
	}
	_, err = tmp.Write(data)
	if cerr := tmp.Close(); err == nil {
		err = cerr
	}
	if err == nil {
		err = os.Rename(tmp.Name(), path)
	}
	if err != nil {
		os.Remove(tmp.Name())
	}
	return err
}

func decodePerson(record map[string]interface{}) (*Person, error) {
	data, err := json.Marshal(record)
	if err != nil {
		return nil, err
	}
	var p Person
	if err := json.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("invalid person record %v: %v", record["id"], err)
	}
	return &p, nil
}

// All returns every person in file order.
func (s *Store) All() ([]*Person, error) {
	doc, err := s.read()
	if err != nil {
		return nil, err
	}
	all := make([]*Person, 0, len(doc.people))
	for _, record := range doc.people {
		if _, ok := record["id"].(string); !ok {
			continue
		}
		p, err := decodePerson(record)
		if err != nil {
			return nil, err
		}
		all = append(all, p)
	}
	return all, nil
}

// ByID returns the person with the given id, compared case-insensitively.
func (s *Store) ByID(id string) (*Person, error) {
	return s.Lookup(id, ID)
}

// Lookup finds the person known by handle in context c. Minecraft names
// are first resolved to a UUID when possible, and a UUID match is
// preferred over a name match since Minecraft names may change hands.
func (s *Store) Lookup(handle string, c Context) (*Person, error) {
	all, err := s.All()
	if err != nil {
		return nil, err
	}
	switch c {
	case ID:
		for _, p := range all {
			if strings.EqualFold(p.ID, handle) {
				return p, nil
			}
		}
	case IRC:
		for _, p := range all {
			for _, nick := range p.IRC.Nicks {
				if strings.EqualFold(nick, handle) {
					return p, nil
				}
			}
		}
	case Minecraft:
		id, known := s.minecraftUUID(handle)
		if known {
			for _, p := range all {
				if bound, ok := p.UUID(); ok && bound == id {
					return p, nil
				}
			}
		}
		for _, p := range all {
			if p.Minecraft == "" || !strings.EqualFold(p.Minecraft, handle) {
				continue
			}
			// The name now belongs to someone else.
			if _, bound := p.UUID(); bound && known {
				continue
			}
			return p, nil
		}
	case Reddit:
		name := strings.TrimPrefix(handle, "/u/")
		for _, p := range all {
			if p.Reddit != "" && strings.EqualFold(p.Reddit, name) {
				return p, nil
			}
		}
	case Twitter:
		name := strings.TrimPrefix(handle, "@")
		for _, p := range all {
			if p.Twitter != "" && strings.EqualFold(p.Twitter, name) {
				return p, nil
			}
		}
	default:
		return nil, fmt.Errorf("no such context: %q", c)
	}
	return nil, &NotFoundError{Context: c, Handle: handle}
}

// minecraftUUID returns the UUID of the account currently known by
// handle, which may also be a UUID itself. It reports false when the UUID
// cannot be determined.
func (s *Store) minecraftUUID(handle string) (uuid.UUID, bool) {
	if id, err := uuid.Parse(handle); err == nil {
		return id, true
	}
	if s.profiles == nil {
		return uuid.Nil, false
	}
	id, _, err := s.profiles.Profile(handle)
	if err != nil {
		if !errors.Is(err, ErrNotFound) {
			logf("Cannot look up Minecraft profile for %q: %v", handle, err)
		}
		return uuid.Nil, false
	}
	return id, true
}

// Find tries each context in order and returns the first person found.
// If none match, the error from the last attempt is returned.
func (s *Store) Find(handle string, contexts ...Context) (*Person, error) {
	err := error(&NotFoundError{Context: ID, Handle: handle})
	for _, c := range contexts {
		var p *Person
		p, err = s.Lookup(handle, c)
		if err == nil {
			return p, nil
		}
		if !errors.Is(err, ErrNotFound) {
			return nil, err
		}
	}
	return nil, err
}

// Resolve returns the person known by handle in context c, or a Dummy
// when there is no such person. Failures reading the people file are
// logged and also produce a Dummy.
func (s *Store) Resolve(handle string, c Context) Identity {
	p, err := s.Lookup(handle, c)
	if err == nil {
		return p
	}
	if !errors.Is(err, ErrNotFound) {
		logf("Cannot resolve %s nick %q: %v", c, handle, err)
	}
	return NewDummy(handle, c)
}

// Sorted resolves every handle in context c and orders the result with
// persons first, in people file order, followed by dummies by handle.
func (s *Store) Sorted(handles []string, c Context) []Identity {
	all, err := s.All()
	if err != nil {
		logf("Cannot sort people: %v", err)
	}
	index := make(map[string]int, len(all))
	for i, p := range all {
		index[p.ID] = i
	}
	var persons []*Person
	var dummies []*Dummy
	for _, handle := range handles {
		switch id := s.Resolve(handle, c).(type) {
		case *Person:
			persons = append(persons, id)
		case *Dummy:
			dummies = append(dummies, id)
		}
	}
	sort.SliceStable(persons, func(i, j int) bool { return index[persons[i].ID] < index[persons[j].ID] })
	sort.SliceStable(dummies, func(i, j int) bool { return dummies[i].Handle < dummies[j].Handle })
	result := make([]Identity, 0, len(persons)+len(dummies))
	for _, p := range persons {
		result = append(result, p)
	}
	for _, d := range dummies {
		result = append(result, d)
	}
	return result
}

// Update sets or, if remove is true, deletes the value at the nested key
// path of the record with the given id. The whole file is read, changed and
// rewritten while holding the store lock.
func (s *Store) Update(id string, path []string, value interface{}, remove bool) error {
	if len(path) == 0 {
		return fmt.Errorf("cannot update person %s: empty key path", id)
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	doc, err := s.read()
	if err != nil {
		return err
	}
	var record map[string]interface{}
	for _, r := range doc.people {
		if rid, _ := r["id"].(string); rid == id {
			record = r
			break
		}
	}
	if record == nil {
		return &NotFoundError{Context: ID, Handle: id}
	}
	if len(path) == 1 && path[0] == "minecraftUUID" && !remove {
		if err := checkUUIDFree(doc, id, value); err != nil {
			return err
		}
	}
	node := record
	for _, key := range path[:len(path)-1] {
		next, ok := node[key]
		if !ok {
			if remove {
				return nil
			}
			child := make(map[string]interface{})
			node[key] = child
			node = child
			continue
		}
		child, ok := next.(map[string]interface{})
		if !ok {
			return fmt.Errorf("cannot update person %s: %s is not an object", id, key)
		}
		node = child
	}
	last := path[len(path)-1]
	if remove {
		delete(node, last)
	} else {
		node[last] = value
	}
	return s.write(doc)
}

func checkUUIDFree(doc *document, id string, value interface{}) error {
	str, _ := value.(string)
	want, err := uuid.Parse(str)
	if err != nil {
		return fmt.Errorf("invalid Minecraft UUID %q", str)
	}
	for _, r := range doc.people {
		rid, _ := r["id"].(string)
		bound, _ := r["minecraftUUID"].(string)
		if rid == id || bound == "" {
			continue
		}
		if other, err := uuid.Parse(bound); err == nil && other == want {
			return fmt.Errorf("Minecraft UUID %s is already bound to %s", want, rid)
		}
	}
	return nil
}

// Add creates a new person record. The record must carry a valid id that
// is not yet in use.
func (s *Store) Add(record map[string]interface{}) error {
	id, _ := record["id"].(string)
	if !ValidID(id) {
		return fmt.Errorf("invalid person id %q", id)
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	doc, err := s.read()
	if err != nil {
		return err
	}
	for _, r := range doc.people {
		if rid, _ := r["id"].(string); strings.EqualFold(rid, id) {
			return fmt.Errorf("id %s: %w", id, ErrExists)
		}
	}
	doc.people = append(doc.people, record)
	return s.write(doc)
}

// Remove deletes the record with the given id.
func (s *Store) Remove(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	doc, err := s.read()
	if err != nil {
		return err
	}
	for i, r := range doc.people {
		if rid, _ := r["id"].(string); strings.EqualFold(rid, id) {
			doc.people = append(doc.people[:i], doc.people[i+1:]...)
			return s.write(doc)
		}
	}
	return &NotFoundError{Context: ID, Handle: id}
}

func personOf(who Identity) (*Person, error) {
	p, ok := who.(*Person)
	if !ok {
		return nil, ErrAnonymous
	}
	return p, nil
}

// SetAttribute sets the value at path for who. It fails with ErrAnonymous
// when who is not a Person.
func (s *Store) SetAttribute(who Identity, path []string, value interface{}) error {
	p, err := personOf(who)
	if err != nil {
		return err
	}
	return s.Update(p.ID, path, value, false)
}

// DeleteAttribute removes the value at path for who, reverting it to its
// default. It fails with ErrAnonymous when who is not a Person.
func (s *Store) DeleteAttribute(who Identity, path []string) error {
	p, err := personOf(who)
	if err != nil {
		return err
	}
	return s.Update(p.ID, path, nil, true)
}

func (s *Store) SetOption(who Identity, name string, value bool) error {
	return s.SetAttribute(who, []string{"options", strings.ToLower(name)}, value)
}

func (s *Store) DeleteOption(who Identity, name string) error {
	return s.DeleteAttribute(who, []string{"options", strings.ToLower(name)})
}
