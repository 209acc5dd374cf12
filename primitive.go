package main

import (
	"fmt"
	"strconv"
	"strings"
)

// Transform is one xform step in the renderer's scene language.
type Transform interface {
	xformArgs() []string
}

// Translate moves geometry by (X, Y, Z), m.
type Translate struct {
	X, Y, Z float64
}

// Rotate rotates geometry by Deg degrees about Axis ('x', 'y' or 'z').
type Rotate struct {
	Axis byte
	Deg  float64
}

// Repeat makes Count copies, each shifted by Step from the previous one.
type Repeat struct {
	Count int
	Step  Translate
}

// Once ends the preceding Repeat group; later steps apply to the whole array.
type Once struct{}

func (t Translate) xformArgs() []string {
	return []string{"-t", num(t.X), num(t.Y), num(t.Z)}
}

func (r Rotate) xformArgs() []string {
	return []string{"-r" + string(r.Axis), num(r.Deg)}
}

func (r Repeat) xformArgs() []string {
	return append([]string{"-a", strconv.Itoa(r.Count)}, r.Step.xformArgs()...)
}

func (Once) xformArgs() []string {
	return []string{"-i", "1"}
}

func num(v float64) string {
	if v == 0 {
		return "0"
	}
	return strconv.FormatFloat(v, 'f', -1, 64)
}

func xformString(ts []Transform) string {
	var args []string
	for _, t := range ts {
		args = append(args, t.xformArgs()...)
	}
	return strings.Join(args, " ")
}

// Primitive is a solid that serializes to renderer scene text.
type Primitive interface {
	Radiance() string
}

// Box is an axis-aligned box with one corner at the local origin, spanning
// Size before its transforms are applied.
type Box struct {
	Material   string
	Name       string
	Size       Vec3
	Transforms []Transform
}

func (b Box) Radiance() string {
	s := fmt.Sprintf("!genbox %s %s %s %s %s", b.Material, b.Name, num(b.Size.X), num(b.Size.Y), num(b.Size.Z))
	if len(b.Transforms) > 0 {
		s += " | xform " + xformString(b.Transforms)
	}
	return s
}

// Cylinder is a round rod between Start and End.
type Cylinder struct {
	Material   string
	Name       string
	Start, End Vec3
	Radius     float64
}

func (c Cylinder) Radiance() string {
	return fmt.Sprintf("%s cylinder %s\n0\n0\n7 %s %s %s %s %s %s %s",
		c.Material, c.Name,
		num(c.Start.X), num(c.Start.Y), num(c.Start.Z),
		num(c.End.X), num(c.End.Y), num(c.End.Z),
		num(c.Radius))
}

// Instance places the content of another scene file.
type Instance struct {
	Name       string
	Path       string
	Transforms []Transform
}

func (i Instance) Radiance() string {
	return fmt.Sprintf("!xform -n %s %s %s", i.Name, xformString(i.Transforms), i.Path)
}

// Geometry is an ordered list of primitives making up one scene file.
type Geometry []Primitive

func (g Geometry) Radiance() string {
	parts := make([]string, len(g))
	for i, p := range g {
		parts[i] = p.Radiance()
	}
	return strings.Join(parts, "\n\n") + "\n"
}

func newBox(material, name string, size Vec3, ts ...Transform) (Box, error) {
	if size.X <= 0 || size.Y <= 0 || size.Z <= 0 {
		return Box{}, configErrorf("box %q must have positive dimensions, got %v", name, size)
	}
	if material == "" {
		return Box{}, configErrorf("box %q has no material", name)
	}
	return Box{Material: material, Name: name, Size: size, Transforms: ts}, nil
}
