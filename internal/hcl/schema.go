package hcl

import (
	"github.com/hashicorp/hcl/v2"
)

// fileRoot decodes the top level of a pipeline definition file.
type fileRoot struct {
	Sources []*sourceBlock `hcl:"source,block"`
	Stages  []*stageBlock  `hcl:"stage,block"`
	Output  *string        `hcl:"output,optional"`
}

type sourceBlock struct {
	Name        string   `hcl:"name,label"`
	Path        string   `hcl:"path"`
	SrcDir      string   `hcl:"src_dir,optional"`
	Include     []string `hcl:"include,optional"`
	Exclude     []string `hcl:"exclude,optional"`
	Files       []string `hcl:"files,optional"`
	DestDir     string   `hcl:"dest_dir,optional"`
	Description string   `hcl:"description,optional"`
}

type stageBlock struct {
	Name        string         `hcl:"name,label"`
	Uses        string         `hcl:"uses"`
	Inputs      []string       `hcl:"inputs,optional"`
	Options     hcl.Expression `hcl:"options,optional"`
	Timeout     string         `hcl:"timeout,optional"`
	Enabled     *bool          `hcl:"enabled,optional"`
	Description string         `hcl:"description,optional"`
}
