package project

// Feature is an opt-in flag changing build behavior for a single project.
// Flags exist to migrate projects gradually; most projects carry none.
type Feature string

const (
	// FeatureForceDefaultMkDocsTheme forces the platform theme into
	// mkdocs.yml when the project declares no theme of its own.
	FeatureForceDefaultMkDocsTheme Feature = "force_default_mkdocs_theme"

	// FeatureLegacyMkDocs pins the legacy mkdocs release and switches the
	// injected asset URLs from the proxied static prefix to the absolute
	// media URL, which is what that release can serve.
	FeatureLegacyMkDocs Feature = "legacy_mkdocs"

	// FeatureInstallLatestCoreRequirements installs unpinned core doc-tool
	// requirements instead of the frozen legacy set.
	FeatureInstallLatestCoreRequirements Feature = "install_latest_core_requirements"

	// FeaturePipAlwaysUpgrade passes --upgrade when installing the
	// project's requirements file.
	FeaturePipAlwaysUpgrade Feature = "pip_always_upgrade"

	// FeatureUseLatestSphinx removes the sphinx<2 pin from the legacy
	// requirement set.
	FeatureUseLatestSphinx Feature = "use_latest_sphinx"

	// FeatureCondaAppendCoreRequirements appends the platform requirements
	// to the user's conda environment file before `conda env create`.
	FeatureCondaAppendCoreRequirements Feature = "conda_append_core_requirements"
)
