// Package scheduler runs periodic in-process jobs such as the nightly
// auto-resume reconciliation.
//
//	s := scheduler.New(scheduler.WithLogger(log), scheduler.WithLocker(locker, time.Hour))
//	_ = s.Add("auto-resume", scheduler.DailyAt(3, 0), func(ctx context.Context, now time.Time) error {
//		_, err := reconciler.RunAutoResume(ctx, now)
//		return err
//	})
//	err := s.Run(ctx)
package scheduler
