package mjcf

import "encoding/xml"

// mujocoXML mirrors the subset of an MJCF file the reader understands.
// Unknown sections (asset, contact, equality, visual...) are skipped by the decoder.
type mujocoXML struct {
	XMLName   xml.Name      `xml:"mujoco"`
	Model     string        `xml:"model,attr"`
	Includes  []includeXML  `xml:"include"`
	Compilers []compilerXML `xml:"compiler"`
	Options   []optionXML   `xml:"option"`
	Defaults  []defaultXML  `xml:"default"`
	Worldbody []bodyXML     `xml:"worldbody"`
	Actuators []sectionXML  `xml:"actuator"`
	Sensors   []sectionXML  `xml:"sensor"`
}

type includeXML struct {
	File string `xml:"file,attr"`
}

type compilerXML struct {
	Angle string `xml:"angle,attr"`
}

type optionXML struct {
	Timestep string `xml:"timestep,attr"`
}

// defaultXML is a (possibly nested) default class. Elements holds the
// per-tag attribute defaults, nested classes inherit from their parent.
type defaultXML struct {
	Class    string       `xml:"class,attr"`
	Defaults []defaultXML `xml:"default"`
	Elements []elementXML `xml:",any"`
}

type bodyXML struct {
	Name       string       `xml:"name,attr"`
	ChildClass string       `xml:"childclass,attr"`
	Joints     []elementXML `xml:"joint"`
	FreeJoints []elementXML `xml:"freejoint"`
	Bodies     []bodyXML    `xml:"body"`
}

// sectionXML is an <actuator> or <sensor> block whose children are
// distinguished by tag name.
type sectionXML struct {
	Elements []elementXML `xml:",any"`
}

type elementXML struct {
	XMLName xml.Name
	Attrs   []xml.Attr `xml:",any,attr"`
}

func (e elementXML) attrs() map[string]string {
	m := make(map[string]string, len(e.Attrs))
	for _, a := range e.Attrs {
		m[a.Name.Local] = a.Value
	}
	return m
}
