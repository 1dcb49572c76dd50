// Package bootstrap runs a plcstream command through a uniform lifecycle:
// validate config, start components, run hooks, execute the task, and shut
// down in reverse order when the task ends or SIGINT/SIGTERM arrives.
//
//	app, err := bootstrap.NewApp(&cfg)
//	app.RegisterComponent(device)
//	app.OnStop(flushSinks)
//	err = app.RunTask(ctx, func(ctx context.Context) error {
//	    return runner.Run(ctx)
//	})
package bootstrap
