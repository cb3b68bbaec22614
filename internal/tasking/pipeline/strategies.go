package pipeline

import (
	"fmt"

	"github.com/vietddude/autodev/internal/core/domain"
)

// commandsFor returns the ordered invocation strategies for a stage. Each is
// tried in turn until one exits zero; generated services are polyglot, so the
// lists cover the common layouts per ecosystem.
func commandsFor(stage domain.StageType, svc *domain.ServiceSpec) []string {
	switch stage {
	case domain.StageUnit:
		cmds := []string{
			fmt.Sprintf("python -m pytest tests/unit/%s/ -v --tb=short", svc.Name),
			fmt.Sprintf("python -m unittest discover -s tests/unit/%s -p 'test_*.py' -v", svc.Name),
			fmt.Sprintf("cd %s && python -m pytest tests/ -v --cov=. --cov-report=term", svc.Name),
		}
		if svc.Type == domain.ServiceTypeFrontend {
			cmds = append(cmds,
				fmt.Sprintf("cd %s && npm test -- --watchAll=false", svc.Name),
				fmt.Sprintf("cd %s && yarn test --watchAll=false", svc.Name),
			)
		}
		return cmds

	case domain.StageIntegration:
		return []string{
			fmt.Sprintf("python -m pytest tests/integration/%s/ -v --tb=short", svc.Name),
			fmt.Sprintf("python -m pytest tests/integration/ -k %s -v", svc.Name),
			fmt.Sprintf("cd %s && python -m pytest tests/integration/ -v", svc.Name),
		}

	case domain.StageDomainQA:
		return []string{
			fmt.Sprintf("python scripts/test_ml_%s.py", svc.Name),
			fmt.Sprintf("python tests/ml/test_%s.py", svc.Name),
			fmt.Sprintf("cd %s && python -m pytest tests/ml/ -v", svc.Name),
		}

	default:
		return []string{
			fmt.Sprintf("python -m pytest tests/%s/ -v", svc.Name),
		}
	}
}
