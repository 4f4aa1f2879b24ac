package root

import (
	"github.com/Teck-Lab/teck-cloud-saas/apps/cli/cmd/migrate"
	"github.com/Teck-Lab/teck-cloud-saas/apps/cli/cmd/plan"
	"github.com/Teck-Lab/teck-cloud-saas/apps/cli/cmd/serve"
)

func init() {
	Root().AddCommand(migrate.Command())
	Root().AddCommand(plan.Command())
	Root().AddCommand(serve.Command())
}
