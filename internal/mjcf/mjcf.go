// Package mjcf reads the parts of a MuJoCo MJCF robot description that the
// viewer needs: joints, actuators, sensors and the simulation timestep.
//
// It is not a full MJCF compiler. Geometry, assets, contacts, equality
// constraints and tendons are ignored. Top-level <include> files are merged,
// and <default> classes are resolved for joints and actuators.
package mjcf

import (
	"encoding/xml"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/pkg/errors"
)

// DefaultTimestep is the engine default when <option timestep> is absent.
const DefaultTimestep = 0.002

// Document is the flattened result of reading an MJCF file and its includes.
type Document struct {
	Model     string
	Timestep  float64
	Joints    []Joint
	Actuators []Actuator
	Sensors   []Sensor
}

// Joint is a <joint> or <freejoint> in depth-first body order.
type Joint struct {
	Name      string
	Body      string
	Type      string
	Limited   bool
	Range     [2]float64
	Damping   float64
	Stiffness float64
	Armature  float64
	Ref       float64
	SpringRef float64
}

// Actuator is a child of <actuator>; Kind is its tag name.
type Actuator struct {
	Name        string
	Kind        string
	Joint       string
	Gear        float64
	Kp          float64
	Kv          float64
	CtrlLimited bool
	CtrlRange   [2]float64
}

// Sensor is a child of <sensor>; Kind is its tag name.
type Sensor struct {
	Name     string
	Kind     string
	Joint    string
	Actuator string
}

// Load reads the MJCF file at path, following <include> elements relative
// to the including file.
func Load(path string) (*Document, error) {
	r := &reader{visiting: make(map[string]bool)}
	root, err := r.read(path)
	if err != nil {
		return nil, err
	}
	return build(root)
}

// Parse decodes a single MJCF document held in memory. Includes are
// resolved relative to dir.
func Parse(data []byte, dir string) (*Document, error) {
	r := &reader{visiting: make(map[string]bool)}
	root, err := r.decode(data, dir, "<memory>")
	if err != nil {
		return nil, err
	}
	return build(root)
}

type reader struct {
	visiting map[string]bool
}

func (r *reader) read(path string) (*mujocoXML, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, errors.Wrapf(err, "resolving %s", path)
	}
	if r.visiting[abs] {
		return nil, errors.Errorf("include cycle at %s", path)
	}
	r.visiting[abs] = true
	defer delete(r.visiting, abs)

	//nolint:gosec
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "reading %s", path)
	}
	return r.decode(data, filepath.Dir(path), path)
}

func (r *reader) decode(data []byte, dir, name string) (*mujocoXML, error) {
	var doc mujocoXML
	if err := xml.Unmarshal(data, &doc); err != nil {
		return nil, errors.Wrapf(err, "parsing %s", name)
	}

	merged := &mujocoXML{Model: doc.Model}
	for _, inc := range doc.Includes {
		if inc.File == "" {
			return nil, errors.Errorf("%s: <include> without file attribute", name)
		}
		child, err := r.read(filepath.Join(dir, inc.File))
		if err != nil {
			return nil, err
		}
		merge(merged, child)
	}
	doc.Includes = nil
	merge(merged, &doc)
	return merged, nil
}

// merge appends src's sections to dst. The including file's model name wins
// over names declared by included files.
func merge(dst, src *mujocoXML) {
	if dst.Model == "" {
		dst.Model = src.Model
	}
	dst.Compilers = append(dst.Compilers, src.Compilers...)
	dst.Options = append(dst.Options, src.Options...)
	dst.Defaults = append(dst.Defaults, src.Defaults...)
	dst.Worldbody = append(dst.Worldbody, src.Worldbody...)
	dst.Actuators = append(dst.Actuators, src.Actuators...)
	dst.Sensors = append(dst.Sensors, src.Sensors...)
}

func build(root *mujocoXML) (*Document, error) {
	doc := &Document{Model: root.Model, Timestep: DefaultTimestep}

	degrees := true
	for _, c := range root.Compilers {
		switch c.Angle {
		case "", "degree":
		case "radian":
			degrees = false
		default:
			return nil, errors.Errorf("compiler: unknown angle unit %q", c.Angle)
		}
	}

	for _, o := range root.Options {
		if o.Timestep == "" {
			continue
		}
		ts, err := strconv.ParseFloat(strings.TrimSpace(o.Timestep), 64)
		if err != nil || ts <= 0 {
			return nil, errors.Errorf("option: invalid timestep %q", o.Timestep)
		}
		doc.Timestep = ts
	}

	classes := newClassTable()
	for _, d := range root.Defaults {
		if err := classes.add(d, ""); err != nil {
			return nil, err
		}
	}

	b := &builder{doc: doc, classes: classes, degrees: degrees}
	for _, wb := range root.Worldbody {
		if err := b.walk(wb, defaultClass); err != nil {
			return nil, err
		}
	}
	for _, sec := range root.Actuators {
		for _, el := range sec.Elements {
			a, err := b.actuator(el)
			if err != nil {
				return nil, err
			}
			doc.Actuators = append(doc.Actuators, a)
		}
	}
	for _, sec := range root.Sensors {
		for _, el := range sec.Elements {
			attrs := el.attrs()
			doc.Sensors = append(doc.Sensors, Sensor{
				Name:     attrs["name"],
				Kind:     el.XMLName.Local,
				Joint:    attrs["joint"],
				Actuator: attrs["actuator"],
			})
		}
	}
	return doc, nil
}

type builder struct {
	doc     *Document
	classes *classTable
	degrees bool
}

func (b *builder) walk(body bodyXML, class string) error {
	if body.ChildClass != "" {
		if !b.classes.has(body.ChildClass) {
			return errors.Errorf("body %q: unknown childclass %q", body.Name, body.ChildClass)
		}
		class = body.ChildClass
	}
	for _, el := range body.FreeJoints {
		attrs := el.attrs()
		b.doc.Joints = append(b.doc.Joints, Joint{Name: attrs["name"], Body: body.Name, Type: "free"})
	}
	for _, el := range body.Joints {
		j, err := b.joint(el, body.Name, class)
		if err != nil {
			return err
		}
		b.doc.Joints = append(b.doc.Joints, j)
	}
	for _, child := range body.Bodies {
		if err := b.walk(child, class); err != nil {
			return err
		}
	}
	return nil
}

func (b *builder) joint(el elementXML, bodyName, class string) (Joint, error) {
	attrs, err := b.classes.resolve("joint", el.attrs(), class)
	if err != nil {
		return Joint{}, err
	}
	j := Joint{Name: attrs["name"], Body: bodyName, Type: attrs["type"]}
	if j.Type == "" {
		j.Type = "hinge"
	}
	switch j.Type {
	case "hinge", "slide", "ball", "free":
	default:
		return Joint{}, errors.Errorf("joint %q: unknown type %q", j.Name, j.Type)
	}

	p := attrParser{attrs: attrs, elem: "joint " + j.Name}
	j.Damping = p.float("damping", 0)
	j.Stiffness = p.float("stiffness", 0)
	j.Armature = p.float("armature", 0)
	j.Ref = p.float("ref", 0)
	j.SpringRef = p.float("springref", 0)
	j.Range = p.pair("range")
	j.Limited = p.limited("limited", "range")
	if p.err != nil {
		return Joint{}, p.err
	}

	if b.degrees && j.Type == "hinge" {
		j.Range[0] *= math.Pi / 180
		j.Range[1] *= math.Pi / 180
		j.Ref *= math.Pi / 180
		j.SpringRef *= math.Pi / 180
	}
	if j.Limited && j.Range[0] > j.Range[1] {
		return Joint{}, errors.Errorf("joint %q: range lower bound exceeds upper bound", j.Name)
	}
	return j, nil
}

func (b *builder) actuator(el elementXML) (Actuator, error) {
	kind := el.XMLName.Local
	attrs, err := b.classes.resolve(kind, el.attrs(), defaultClass)
	if err != nil {
		return Actuator{}, err
	}

	a := Actuator{Name: attrs["name"], Kind: kind, Joint: attrs["joint"]}
	p := attrParser{attrs: attrs, elem: kind + " " + a.Name}
	a.Gear = p.float("gear", 1)
	switch kind {
	case "position":
		a.Kp = p.float("kp", 1)
		a.Kv = p.float("kv", 0)
	case "velocity":
		a.Kv = p.float("kv", 1)
	case "general":
		a.Gear *= p.float("gainprm", 1)
	}
	a.CtrlRange = p.pair("ctrlrange")
	a.CtrlLimited = p.limited("ctrllimited", "ctrlrange")
	if p.err != nil {
		return Actuator{}, p.err
	}
	if a.CtrlLimited && a.CtrlRange[0] > a.CtrlRange[1] {
		return Actuator{}, errors.Errorf("%s %q: ctrlrange lower bound exceeds upper bound", kind, a.Name)
	}
	return a, nil
}

// attrParser collects the first conversion error so call sites stay flat.
type attrParser struct {
	attrs map[string]string
	elem  string
	err   error
}

func (p *attrParser) fields(key string) []string {
	return strings.Fields(p.attrs[key])
}

func (p *attrParser) parse(key, s string) float64 {
	v, err := strconv.ParseFloat(s, 64)
	if err != nil && p.err == nil {
		p.err = errors.Wrapf(err, "%s: attribute %s", p.elem, key)
	}
	return v
}

// float reads a scalar attribute. For list attributes (gear, gainprm) only
// the first entry is used.
func (p *attrParser) float(key string, def float64) float64 {
	f := p.fields(key)
	if len(f) == 0 {
		return def
	}
	return p.parse(key, f[0])
}

func (p *attrParser) pair(key string) [2]float64 {
	f := p.fields(key)
	if len(f) == 0 {
		return [2]float64{}
	}
	if len(f) != 2 {
		if p.err == nil {
			p.err = errors.Errorf("%s: attribute %s needs 2 values, got %d", p.elem, key, len(f))
		}
		return [2]float64{}
	}
	return [2]float64{p.parse(key, f[0]), p.parse(key, f[1])}
}

// limited resolves a true/false/auto flag. Auto means limited when the
// paired range attribute is present.
func (p *attrParser) limited(key, rangeKey string) bool {
	switch p.attrs[key] {
	case "true":
		return true
	case "false":
		return false
	case "", "auto":
		return len(p.fields(rangeKey)) > 0
	default:
		if p.err == nil {
			p.err = errors.Errorf("%s: attribute %s must be true, false or auto", p.elem, key)
		}
		return false
	}
}
