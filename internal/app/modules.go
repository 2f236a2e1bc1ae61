package app

import (
	"github.com/specialistvlad/burstbuild/internal/registry"
	"github.com/specialistvlad/burstbuild/modules/asset_rev"
	"github.com/specialistvlad/burstbuild/modules/bundle_js"
	"github.com/specialistvlad/burstbuild/modules/clean_css"
	"github.com/specialistvlad/burstbuild/modules/compile_sass"
	"github.com/specialistvlad/burstbuild/modules/eslint"
	"github.com/specialistvlad/burstbuild/modules/exec"
	"github.com/specialistvlad/burstbuild/modules/funnel"
	"github.com/specialistvlad/burstbuild/modules/livereload"
	"github.com/specialistvlad/burstbuild/modules/log_tree"
	"github.com/specialistvlad/burstbuild/modules/merge"
	"github.com/specialistvlad/burstbuild/modules/sasslint"
)

// coreModules is the definitive list of all stage modules that are compiled
// into the burstbuild binary.
var coreModules = []registry.Module{
	&funnel.Module{},
	&merge.Module{},
	&eslint.Module{},
	&sasslint.Module{},
	&bundle_js.Module{},
	&compile_sass.Module{},
	&clean_css.Module{},
	&asset_rev.Module{},
	&livereload.Module{},
	&log_tree.Module{},
	&exec.Module{},
}
