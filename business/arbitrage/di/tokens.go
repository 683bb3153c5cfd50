// Package di contains dependency injection tokens for the arbitrage context.
package di

import (
	"github.com/fd1az/prediction-arb/business/arbitrage/app"
	"github.com/fd1az/prediction-arb/internal/di"
)

// Public service tokens - exposed to other modules
var (
	Scheduler  = di.NewToken[*app.Scheduler]("arbitrage.Scheduler")
	Statistics = di.NewToken[*app.Statistics]("arbitrage.Statistics")
)

// Private dependency tokens - internal to arbitrage module
var (
	Detector = di.NewToken[*app.Detector]("arbitrage:detector")
	Executor = di.NewToken[*app.Executor]("arbitrage:executor")
	Guard    = di.NewToken[app.Guard]("arbitrage:guard")
	Reporter = di.NewToken[app.Reporter]("arbitrage:reporter")
)

func GetScheduler(c di.ServiceRegistry) *app.Scheduler {
	return di.GetToken(c, Scheduler)
}

func GetStatistics(c di.ServiceRegistry) *app.Statistics {
	return di.GetToken(c, Statistics)
}

func GetDetector(c di.ServiceRegistry) *app.Detector {
	return di.GetToken(c, Detector)
}

func GetExecutor(c di.ServiceRegistry) *app.Executor {
	return di.GetToken(c, Executor)
}

func GetGuard(c di.ServiceRegistry) app.Guard {
	return di.GetToken(c, Guard)
}

func GetReporter(c di.ServiceRegistry) app.Reporter {
	return di.GetToken(c, Reporter)
}
