// Package bootstrap runs a service's lifecycle: validate config, start the
// registered components in order, wait for SIGINT/SIGTERM, then stop them
// in reverse order within a graceful timeout.
//
//	app, err := bootstrap.NewApp(&cfg, bootstrap.WithLogger(log))
//	_ = app.RegisterComponent(dbComponent)
//	_ = app.RegisterComponent(serverComponent)
//	if err := app.Run(ctx); err != nil {
//	    log.Error(err.Error())
//	}
package bootstrap
