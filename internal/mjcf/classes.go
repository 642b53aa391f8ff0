package mjcf

import (
	"github.com/pkg/errors"
)

// defaultClass is the implicit class of the top-level <default> element.
const defaultClass = "main"

// classTable maps class -> element tag -> attribute defaults, with
// inheritance already flattened in.
type classTable struct {
	classes map[string]map[string]map[string]string
}

func newClassTable() *classTable {
	return &classTable{classes: map[string]map[string]map[string]string{
		defaultClass: {},
	}}
}

func (c *classTable) has(name string) bool {
	_, ok := c.classes[name]
	return ok
}

func (c *classTable) add(d defaultXML, parent string) error {
	name := d.Class
	switch {
	case name == "" && parent == "":
		name = defaultClass
	case name == "":
		return errors.Errorf("nested <default> under class %q has no class attribute", parent)
	}

	tags, exists := c.classes[name]
	switch {
	case exists && name != defaultClass:
		return errors.Errorf("duplicate default class %q", name)
	case !exists:
		tags = make(map[string]map[string]string)
		for tag, attrs := range c.classes[parent] {
			tags[tag] = copyAttrs(attrs)
		}
		c.classes[name] = tags
	}

	for _, el := range d.Elements {
		tag := el.XMLName.Local
		if tags[tag] == nil {
			tags[tag] = make(map[string]string)
		}
		for k, v := range el.attrs() {
			tags[tag][k] = v
		}
	}

	for _, child := range d.Defaults {
		if err := c.add(child, name); err != nil {
			return err
		}
	}
	return nil
}

// resolve overlays an element's own attributes on its class defaults. An
// explicit class attribute takes precedence over the inherited one.
func (c *classTable) resolve(tag string, attrs map[string]string, class string) (map[string]string, error) {
	if explicit := attrs["class"]; explicit != "" {
		class = explicit
	}
	tags, ok := c.classes[class]
	if !ok {
		return nil, errors.Errorf("%s %q: unknown class %q", tag, attrs["name"], class)
	}
	out := copyAttrs(tags[tag])
	for k, v := range attrs {
		out[k] = v
	}
	delete(out, "class")
	return out, nil
}

func copyAttrs(src map[string]string) map[string]string {
	out := make(map[string]string, len(src))
	for k, v := range src {
		out[k] = v
	}
	return out
}
