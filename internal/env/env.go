// Package env names the deployment environments. Development relaxes
// requirements the hub enforces in production, like a configured
// postgres URL.
package env

type Environment string

const (
	Development Environment = "development"
	Production  Environment = "production"
)

func (e Environment) IsDevelopment() bool { return e == Development }
func (e Environment) IsProduction() bool  { return e == Production }
