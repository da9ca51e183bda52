// Package ramblk implements a RAM-backed block device domain.
//
// Sectors live in the linear memory of a memory-only WebAssembly instance,
// so each disk's storage is a separate wazero runtime that the domain owns
// and can discard on restart:
//
//	blk, disk, err := ramblk.Main(ctx, env, ramblk.Config{Sectors: 2048})
//	if err != nil {
//	    return err
//	}
//	defer disk.Close(ctx)
//
// InjectCrashes makes subsequent reads fault after scribbling over the lent
// buffer, which exercises the crash and recovery paths end to end.
package ramblk
