package provisioning

const (
	// StatusActive is the task status a fresh submission is correlated on.
	StatusActive = "Active"

	defaultPageSize    = 1000
	defaultDescription = "Token provisioned by silo-enroll"

	taskRow = "Provisioning_x0020_Tasks"
)

// Task is one row of the backend's provisioning task list. Tasks are read
// fresh on every lookup.
type Task struct {
	TaskID      int
	Owner       string
	TokenOption string
	Status      string
}

type Config struct {
	PageSize    int    `mapstructure:"page_size"`
	Description string `mapstructure:"description"`
}

func (c Config) withDefaults() Config {
	if c.PageSize <= 0 {
		c.PageSize = defaultPageSize
	}
	if c.Description == "" {
		c.Description = defaultDescription
	}
	return c
}
