package netmount

// Function codes, carried verbatim from the DOS INT 2Fh/11h redirector
// interface this protocol rides on.
const (
	FuncInstallCheck         = 0x00
	FuncRemoveDir            = 0x01
	FuncMakeDir              = 0x03
	FuncChangeDir            = 0x05
	FuncCloseFile            = 0x06
	FuncCommitFile           = 0x07
	FuncReadFile             = 0x08
	FuncWriteFile            = 0x09
	FuncLockUnlockFile       = 0x0A
	FuncDiskInfo             = 0x0C
	FuncSetAttrs             = 0x0E
	FuncGetAttrs             = 0x0F
	FuncRenameFile           = 0x11
	FuncDeleteFile           = 0x13
	FuncOpenFile             = 0x16
	FuncCreateFile           = 0x17
	FuncFindFirst            = 0x1B
	FuncFindNext             = 0x1C
	FuncSeekFromEnd          = 0x21
	FuncExtendedOpenCreate   = 0x2E
)

// Action-code nibbles carried by OPEN_FILE/CREATE_FILE/EXTENDED_OPEN_CREATE.
const (
	ifExistMask           = 0x0F
	actionOpenIfExist      = 0x01
	actionReplaceIfExist   = 0x02
	ifNotExistMask        = 0xF0
	actionCreateIfNotExist = 0x10
)

// Result codes for EXTENDED_OPEN_CREATE's reply.
const (
	extOpenResultOpened    = 1
	extOpenResultCreated   = 2
	extOpenResultTruncated = 3
)
