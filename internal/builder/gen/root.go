package gen

import (
	"strings"
)

// sharedHeader is the machinery every fragment relies on: build paths, the
// command-line change detection behind do_cmd, and the generic compile, link,
// archive, copy and stamp commands. __default_configuration__ is replaced with
// the default configuration name.
const sharedHeader = `# Implicit rules are never used; every rule is written out explicitly.
MAKEFLAGS=-r

# V=1 on the command line prints full command lines.
ifdef V
  quiet=
else
  quiet=quiet_
endif

# The active configuration; override with BUILDTYPE=<name>.
BUILDTYPE ?= __default_configuration__

# All build output goes below builddir.
builddir ?= $(rootdir)/$(builddir_name)/$(BUILDTYPE)

# Object files and other intermediates.
obj := $(builddir)/obj
abs_obj := $(abspath $(obj))

# Every output whose dependency file should be read back, see the footer.
all_targets :=

# C++ code has to be linked with the C++ driver.
LD := $(CXX)
RANLIB ?= ranlib

# The compiler writes dependency info to a temporary file that is fixed up
# and appended to the real one, so an interrupted compile never leaves a
# broken dependency file behind.
depfile = $@.d
DEPFLAGS = -MMD -MF $(depfile).tmp

# fixup_dep rewrites the compiler's dependency output so the rule names the
# full object path, and adds an empty rule for every header so that a
# deleted header does not break the build.
define fixup_dep
sed -i -e "s|^$(notdir $@)|$@|" $(depfile).tmp
sed -e "s|^[^:]*: *||" -e "s| *\\\\$$||" -e 's|^ *||' \
    -e "/./s|$$|:|" $(depfile).tmp >> $(depfile).tmp
cat $(depfile).tmp >> $(depfile)
rm -f $(depfile).tmp
endef

# cmd_foo is a command; quiet_cmd_foo is its one-line summary.

quiet_cmd_cc = CC $@
cmd_cc = $(CC) $(CFLAGS) $(DEPFLAGS) -c -o $@ $<

quiet_cmd_cxx = CXX $@
cmd_cxx = $(CXX) $(CXXFLAGS) $(DEPFLAGS) -c -o $@ $<

quiet_cmd_alink = AR+RANLIB $@
cmd_alink = $(AR) rc $@ $(filter %.o,$^) && $(RANLIB) $@

quiet_cmd_touch = TOUCH $@
cmd_touch = touch $@

quiet_cmd_copy = COPY $@
cmd_copy = ln -f $< $@ || cp -af $< $@

# Libraries may reference each other in a cycle, so the whole input list is
# wrapped in a group that the linker searches until nothing new resolves.
quiet_cmd_link = LINK $@
cmd_link = $(LD) $(LDFLAGS) -o $@ -Wl,--start-group $(filter-out FORCE_DO_CMD,$^) -Wl,--end-group $(LIBS)

quiet_cmd_solink = SOLINK $@
cmd_solink = $(LD) -shared $(LDFLAGS) -o $@ -Wl,--start-group $(filter-out FORCE_DO_CMD,$^) -Wl,--end-group $(LIBS)

# escape_quotes makes a string safe inside single quotes.
escape_quotes = $(subst ','\'',$(1))

# escape_vars doubles every $ so a saved command reads back verbatim.
escape_vars = $(subst $$,$$$$,$(1))

# escape_hash keeps a # in a saved command from starting a comment.
hash := \#
escape_hash = $(subst $(hash),\$(hash),$(1))

# command_changed is empty when the command about to run equals the one
# recorded for $@ on its last run. make has no string equality, so each
# string is substituted away inside the other; both results are empty only
# when the two are identical.
command_changed = $(or $(subst $(cmd_$(1)),,$(cmd_$@)),\
                       $(subst $(cmd_$@),,$(cmd_$(1))))

# prereq_changed is non-empty when a normal prerequisite is newer than $@.
#   $? -- newer prerequisites
#   $| -- order-only prerequisites
prereq_changed = $(filter-out FORCE_DO_CMD,$(filter-out $|,$?))

# do_cmd runs cmd_$(1) when its command line or a prerequisite changed, then
# records the command line in $@.d, escaped so that reading it back yields
# the same text. A non-empty $(2) post-processes the compiler's dependency
# output.
define do_cmd
$(if $(or $(command_changed),$(prereq_changed)),
  @echo '  $($(quiet)cmd_$(1))'
  @mkdir -p $(dir $@)
  @$(cmd_$(1))
  @printf '%s\n' '$(call escape_vars,$(call escape_hash,$(call escape_quotes,cmd_$@ := $(cmd_$(1)))))' > $(depfile)
  @$(if $(2),$(fixup_dep))
)
endef

# "all" comes first so it is the default goal.
.PHONY: all
all:

# Rules that must always be evaluated depend on FORCE_DO_CMD.
.PHONY: FORCE_DO_CMD
FORCE_DO_CMD:

# Suffix rules; all objects go below $(obj).
$(obj)/%.o: %.c FORCE_DO_CMD
	@$(call do_cmd,cc,1)
$(obj)/%.o: %.s FORCE_DO_CMD
	@$(call do_cmd,cc)
$(obj)/%.o: %.S FORCE_DO_CMD
	@$(call do_cmd,cc,1)
$(obj)/%.o: %.cpp FORCE_DO_CMD
	@$(call do_cmd,cxx,1)
$(obj)/%.o: %.cc FORCE_DO_CMD
	@$(call do_cmd,cxx,1)
$(obj)/%.o: %.cxx FORCE_DO_CMD
	@$(call do_cmd,cxx,1)

# Generated sources.
$(obj)/%.o: $(obj)/%.c FORCE_DO_CMD
	@$(call do_cmd,cc,1)
$(obj)/%.o: $(obj)/%.cc FORCE_DO_CMD
	@$(call do_cmd,cxx,1)
$(obj)/%.o: $(obj)/%.cpp FORCE_DO_CMD
	@$(call do_cmd,cxx,1)

`

// sharedFooter builds everything collected in all_targets and reads back
// the dependency files of outputs that already exist.
const sharedFooter = `
# Every fragment has been read; all_targets is complete now.
all: $(all_targets)

# Only outputs that exist on disk can have dependency files. Anything not
# built yet is going to be built regardless.
all_targets := $(wildcard $(sort $(all_targets)))
d_files := $(wildcard $(foreach f,$(all_targets),$(f).d))
ifneq ($(d_files),)
  include $(d_files)
endif
`

// Render serializes the root makefile
func (r *RootFile) Render() string {
	var sb strings.Builder
	write(&sb, generatedHeader)

	writeln(&sb, "# The root of the project.")
	writeln(&sb, "rootdir ?= ", r.Root)
	writeln(&sb)
	writeln(&sb, "# The name of the builddir.")
	writeln(&sb, "builddir_name ?= ", r.OutputDir)
	writeln(&sb)
	if r.CC != "" || r.CXX != "" {
		writeln(&sb, "# Compilers found when the makefiles were generated.")
		if r.CC != "" {
			writeln(&sb, "CC ?= ", r.CC)
		}
		if r.CXX != "" {
			writeln(&sb, "CXX ?= ", r.CXX)
		}
		writeln(&sb)
	}

	write(&sb, strings.ReplaceAll(sharedHeader, "__default_configuration__", r.DefaultConfiguration))

	for _, include := range r.Includes {
		writeln(&sb, "include ", include)
	}

	write(&sb, sharedFooter)
	return sb.String()
}
