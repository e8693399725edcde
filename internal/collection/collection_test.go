package collection

import (
	"testing"

	"photo-shrinker-go/internal/compressor"
)

func img(name string, payload string) *compressor.EncodedImage {
	data := []byte(payload)
	return &compressor.EncodedImage{Name: name, Data: data, Size: int64(len(data)), WithinBudget: true}
}

func TestAddKeepsInsertionOrder(t *testing.T) {
	c := New()
	a := c.Add(img("a.jpg", "aaa"))
	b := c.Add(img("b.jpg", "bb"))

	list := c.List()
	if len(list) != 2 || list[0].ID != a.ID || list[1].ID != b.ID {
		t.Fatalf("unexpected list: %+v", list)
	}
	if a.ID == b.ID || a.ID == "" {
		t.Fatalf("ids not unique: %q %q", a.ID, b.ID)
	}
	if c.TotalSize() != 5 {
		t.Fatalf("TotalSize = %d", c.TotalSize())
	}
}

func TestRemoveByPayloadPreservesOthers(t *testing.T) {
	c := New()
	a := c.Add(img("a.jpg", "one"))
	c.Add(img("b.jpg", "two"))
	d := c.Add(img("c.jpg", "three"))

	if n := c.Remove([]byte("two")); n != 1 {
		t.Fatalf("removed %d", n)
	}
	list := c.List()
	if len(list) != 2 || list[0].ID != a.ID || list[1].ID != d.ID {
		t.Fatalf("remaining = %+v", list)
	}
	if n := c.Remove([]byte("missing")); n != 0 {
		t.Fatalf("removed %d for unknown payload", n)
	}
}

func TestRemoveDropsIdenticalPayloads(t *testing.T) {
	c := New()
	c.Add(img("a.jpg", "same"))
	c.Add(img("b.jpg", "other"))
	c.Add(img("copy-of-a.jpg", "same"))

	if n := c.Remove([]byte("same")); n != 2 {
		t.Fatalf("removed %d, want 2", n)
	}
	if c.Len() != 1 || c.List()[0].Name != "b.jpg" {
		t.Fatalf("remaining = %+v", c.List())
	}
}

func TestRemoveID(t *testing.T) {
	c := New()
	e := c.Add(img("a.jpg", "x"))
	if _, ok := c.RemoveID("nope"); ok {
		t.Fatalf("unknown id reported as found")
	}
	if n, ok := c.RemoveID(e.ID); !ok || n != 1 {
		t.Fatalf("RemoveID = %d, %v", n, ok)
	}
	if _, ok := c.Get(e.ID); ok {
		t.Fatalf("entry still present")
	}
}

func TestListIsACopy(t *testing.T) {
	c := New()
	c.Add(img("a.jpg", "x"))
	list := c.List()
	list[0].Name = "changed"
	if c.List()[0].Name != "a.jpg" {
		t.Fatalf("List exposed internal state")
	}
	c.Clear()
	if c.Len() != 0 {
		t.Fatalf("Clear left %d entries", c.Len())
	}
}

func TestListenerPublishesSuccesses(t *testing.T) {
	c := New()
	var added []string
	failures := 0
	l := &Listener{
		Collection: c,
		OnAdded:    func(e Entry, _ compressor.ItemResult) { added = append(added, e.Name) },
		OnFailed:   func(compressor.ItemResult) { failures++ },
	}

	var _ compressor.Listener = l
	l.ImageCompressed(compressor.ItemResult{Name: "a.jpg", Image: img("a.jpg", "1")})
	l.ImageFailed(compressor.ItemResult{Name: "b.jpg"})
	l.ImageCompressed(compressor.ItemResult{Name: "c.jpg", Image: img("c.jpg", "2")})

	if c.Len() != 2 || failures != 1 {
		t.Fatalf("len=%d failures=%d", c.Len(), failures)
	}
	if added[0] != "a.jpg" || added[1] != "c.jpg" {
		t.Fatalf("added = %v", added)
	}
}
