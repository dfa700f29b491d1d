package parser

import "encoding/xml"

// Element types of the MeshLink document. Numeric attributes are kept as
// strings so absent values can be told apart from zero and bad values can
// be reported with their element.

type xmlDoc struct {
	XMLName        xml.Name           `xml:"MeshLink"`
	Version        string             `xml:"version,attr,omitempty"`
	Xmlns          string             `xml:"xmlns,attr,omitempty"`
	Attributes     []xmlAttribute     `xml:"Attribute"`
	AttrGroups     []xmlAttribute     `xml:"AttributeGroup"`
	GeometryFiles  []xmlGeometryFile  `xml:"GeometryFile"`
	GeometryGroups []xmlGeometryGroup `xml:"GeometryGroup"`
	MeshFiles      []xmlMeshFile      `xml:"MeshFile"`
}

type xmlAttribute struct {
	AttID string `xml:"attid,attr"`
	Name  string `xml:"name,attr"`
	Value string `xml:",chardata"`
}

type xmlGeometryFile struct {
	Filename   string             `xml:"filename,attr"`
	Aref       string             `xml:"aref,attr,omitempty"`
	References []xmlGeometryRef   `xml:"GeometryReference"`
	Groups     []xmlGeometryGroup `xml:"GeometryGroup"`
}

type xmlGeometryRef struct {
	GID  string `xml:"gid,attr"`
	Ref  string `xml:"ref,attr"`
	Name string `xml:"name,attr,omitempty"`
	Aref string `xml:"aref,attr,omitempty"`
}

type xmlGeometryGroup struct {
	GID     string `xml:"gid,attr"`
	Name    string `xml:"name,attr,omitempty"`
	Aref    string `xml:"aref,attr,omitempty"`
	Members string `xml:",chardata"`
}

type xmlMeshFile struct {
	Filename string     `xml:"filename,attr"`
	Aref     string     `xml:"aref,attr,omitempty"`
	Models   []xmlModel `xml:"MeshModelReference"`
}

// xmlTopo holds the attributes common to models, strings and sheets.
type xmlTopo struct {
	Ref  string `xml:"ref,attr,omitempty"`
	Name string `xml:"name,attr,omitempty"`
	Mid  string `xml:"mid,attr,omitempty"`
	Aref string `xml:"aref,attr,omitempty"`
	Gref string `xml:"gref,attr,omitempty"`
}

type xmlModel struct {
	xmlTopo
	ParamVerts []xmlParamVertex `xml:"ParamVertex"`
	PointRefs  []xmlElems       `xml:"MeshPointReference"`
	Sheets     []xmlSheet       `xml:"MeshSheet"`
	SheetRefs  []xmlSheet       `xml:"MeshSheetReference"`
	Strings    []xmlString      `xml:"MeshString"`
	StringRefs []xmlString      `xml:"MeshStringReference"`
}

type xmlString struct {
	xmlTopo
	ParamVerts []xmlParamVertex `xml:"ParamVertex"`
	Edges      []xmlElems       `xml:"MeshEdge"`
	EdgeRefs   []xmlElems       `xml:"MeshEdgeReference"`
}

type xmlSheet struct {
	xmlTopo
	ParamVerts []xmlParamVertex `xml:"ParamVertex"`
	Faces      []xmlElems       `xml:"MeshFace"`
	FaceRefs   []xmlElems       `xml:"MeshFaceReference"`
}

type xmlParamVertex struct {
	Vref  string `xml:"vref,attr"`
	Gref  string `xml:"gref,attr"`
	Mid   string `xml:"mid,attr,omitempty"`
	Dim   string `xml:"dim,attr"`
	Value string `xml:",chardata"`
}

// xmlElems is a run of count mesh elements or references of one kind.
type xmlElems struct {
	Etype  string `xml:"etype,attr,omitempty"`
	Mid    string `xml:"mid,attr,omitempty"`
	Aref   string `xml:"aref,attr,omitempty"`
	Gref   string `xml:"gref,attr,omitempty"`
	Name   string `xml:"name,attr,omitempty"`
	Format string `xml:"format,attr,omitempty"`
	Count  string `xml:"count,attr,omitempty"`
	Value  string `xml:",chardata"`
}
