package digraph

// definition is the raw pipeline shape decoded from YAML before validation.
type definition struct {
	// Name is the job name. Defaults to the file name without extension.
	Name string `mapstructure:"name"`
	// Description is an optional free-form description.
	Description string `mapstructure:"description"`
	// Dotenv is an optional dotenv file loaded before the run, resolved
	// relative to the pipeline file.
	Dotenv string `mapstructure:"dotenv"`
	// Steps maps step name to its definition.
	Steps map[string]stepDef `mapstructure:"steps"`
}

// stepDef is the raw step shape inside a pipeline definition.
type stepDef struct {
	Description string         `mapstructure:"description"`
	Action      string         `mapstructure:"action"`
	Params      map[string]any `mapstructure:"params"`
	DependsOn   string         `mapstructure:"dependsOn"`
	Retries     int            `mapstructure:"retries"`
}
