/*
Package config loads the lookout server configuration and resource files.

Load applies, from lowest to highest precedence: built-in defaults, the YAML
(or any viper-supported) config file, and LOOKOUT_* environment variables.
Nested keys use underscores in the environment: nightly.max_jitter is
LOOKOUT_NIGHTLY_MAX_JITTER. A .env file in the working directory is loaded
into the environment first when present.

Resource files hold Source and Dashboard documents separated by "---":

	apiVersion: lookout/v1
	kind: Source
	metadata:
	  name: cpu
	spec:
	  kind: redis
	  frequency: 30s
	  enabled: true
	  properties:
	    url: redis://localhost:6379/0
	    section: cpu
	    field: used_cpu_sys
*/
package config
