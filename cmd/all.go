package cmd

import (
	_ "mm-swarm/cmd/compose"
	_ "mm-swarm/cmd/entrypoint"
	_ "mm-swarm/cmd/registry"
	_ "mm-swarm/cmd/root"
)
