package netmount

import (
	"strings"
)

// relativePath turns a wire path body into the lowercase, forward-slashed,
// leading-slash-trimmed form the Drive expects.
func relativePath(body []byte) string {
	s := strings.ToLower(string(body))
	s = strings.ReplaceAll(s, "\\", "/")
	return strings.TrimLeft(s, "/")
}

// request bundles everything a handler needs: the decoded header, the body
// bytes following it, the resolved drive, and the reply-building helpers.
type request struct {
	header Header
	body   []byte
	drive  *Drive
}

// handlerResult is what a handler hands back to the engine: the value for
// the reply header's AX field and the reply body bytes, if any. failed
// distinguishes a genuine DOS error (ax holds the error code) from success,
// since a few operations (DISK_INFO) repurpose AX to carry result data
// rather than a status code.
type handlerResult struct {
	ax     DosErrorCode
	body   []byte
	failed bool
}

func errResult(code DosErrorCode) handlerResult { return handlerResult{ax: code, failed: true} }
func okResult(body []byte) handlerResult        { return handlerResult{ax: ErrNoError, body: body} }

// handleMakeRemoveDir implements MAKE_DIR and REMOVE_DIR: both take a bare
// relative path and reply with an empty body.
func handleMakeRemoveDir(r request, isMake bool) handlerResult {
	if len(r.body) < 1 {
		return errResult(ErrGeneralFailure)
	}
	path := relativePath(r.body)
	var err error
	if isMake {
		err = r.drive.MakeDir(path)
	} else {
		err = r.drive.DeleteDir(path)
	}
	if err != nil {
		return errResult(ErrWriteFault)
	}
	return okResult(nil)
}

// handleChangeDir implements CHANGE_DIR: validate the directory exists.
func handleChangeDir(r request) handlerResult {
	if len(r.body) < 1 {
		return errResult(ErrGeneralFailure)
	}
	path := relativePath(r.body)
	if _, err := r.drive.ChangeDir(path); err != nil {
		return errResult(ErrPathNotFound)
	}
	return okResult(nil)
}

// handleCloseFile and handleLockUnlockFile both just validate that the
// handle is still allocated; neither keeps a file open between requests.
func handleCloseFile(r request) handlerResult {
	if len(r.body) < 2 {
		return errResult(ErrGeneralFailure)
	}
	handle := little16(r.body)
	r.drive.GetHandlePath(handle) //nolint:errcheck // advisory only, matches original's "ignore on failure"
	return okResult(nil)
}

func handleLockUnlockFile(r request) handlerResult {
	if len(r.body) < 4 {
		return errResult(ErrGeneralFailure)
	}
	handle := little16(r.body[2:4])
	r.drive.GetHandlePath(handle)
	return okResult(nil)
}

// handleReadFile implements READ_FILE.
func handleReadFile(r request) handlerResult {
	if len(r.body) != 8 {
		return errResult(ErrGeneralFailure)
	}
	offset := little32(r.body[0:4])
	handle := little16(r.body[4:6])
	length := little16(r.body[6:8])

	buf := make([]byte, length)
	n, err := r.drive.ReadFile(handle, offset, buf)
	if err != nil {
		return errResult(ErrAccessDenied)
	}
	return okResult(buf[:n])
}

// handleWriteFile implements WRITE_FILE: an empty payload truncates.
func handleWriteFile(r request) handlerResult {
	if len(r.body) < 6 {
		return errResult(ErrGeneralFailure)
	}
	offset := little32(r.body[0:4])
	handle := little16(r.body[4:6])
	payload := r.body[6:]

	n, err := r.drive.WriteFile(handle, offset, payload)
	if err != nil {
		return errResult(ErrAccessDenied)
	}
	reply := make([]byte, 2)
	putLittle16(reply, uint16(n))
	return okResult(reply)
}

// handleDiskInfo implements DISK_INFO: 32K-byte clusters, a fixed
// 32768-byte sector, both sizes clamped below 2 GiB before the shift. AX
// carries media id 0 in the low byte and 1 sector per cluster in the high
// byte; MS-DOS tolerates only 1 here.
func handleDiskInfo(r request) handlerResult {
	const twoGiB = 2 * 1024 * 1024 * 1024
	total, free, err := r.drive.SpaceInfo()
	if err != nil {
		return errResult(ErrGeneralFailure)
	}
	if total >= twoGiB {
		total = twoGiB - 1
	}
	if free >= twoGiB {
		free = twoGiB - 1
	}
	reply := make([]byte, 6)
	putLittle16(reply[0:2], uint16(total>>15))
	putLittle16(reply[2:4], 32768)
	putLittle16(reply[4:6], uint16(free>>15))
	return handlerResult{ax: DosErrorCode(1 << 8), body: reply}
}

// handleSetAttrs implements SET_ATTRS.
func handleSetAttrs(r request) handlerResult {
	if len(r.body) < 2 {
		return errResult(ErrGeneralFailure)
	}
	attrs := r.body[0]
	path := relativePath(r.body[1:])
	if err := r.drive.SetItemAttrs(path, attrs); err != nil {
		return errResult(ErrFileNotFound)
	}
	return okResult(nil)
}

// handleGetAttrs implements GET_ATTRS.
func handleGetAttrs(r request) handlerResult {
	if len(r.body) < 1 {
		return errResult(ErrGeneralFailure)
	}
	path := relativePath(r.body)
	props, err := r.drive.GetDosProperties(path)
	if err != nil || props.Attrs == AttrError {
		return errResult(ErrFileNotFound)
	}
	reply := make([]byte, 9)
	timePart, datePart := uint16(props.DateTime), uint16(props.DateTime>>16)
	putLittle16(reply[0:2], timePart)
	putLittle16(reply[2:4], datePart)
	putLittle16(reply[4:6], uint16(props.Size))
	putLittle16(reply[6:8], uint16(props.Size>>16))
	reply[8] = props.Attrs
	return okResult(reply)
}

// handleRenameFile implements RENAME_FILE: a 1-byte length prefix for the
// first path, the remainder is the second.
func handleRenameFile(r request) handlerResult {
	if len(r.body) < 3 {
		return errResult(ErrFileNotFound)
	}
	path1Len := int(r.body[0])
	if len(r.body) <= 1+path1Len {
		return errResult(ErrFileNotFound)
	}
	oldPath := relativePath(r.body[1 : 1+path1Len])
	newPath := relativePath(r.body[1+path1Len:])
	if err := r.drive.RenameFile(oldPath, newPath); err != nil {
		return errResult(ErrAccessDenied)
	}
	return okResult(nil)
}

// handleDeleteFile implements DELETE_FILE.
func handleDeleteFile(r request) handlerResult {
	if len(r.body) < 1 {
		return errResult(ErrGeneralFailure)
	}
	path := relativePath(r.body)
	if err := r.drive.DeleteFiles(path); err != nil {
		if de, ok := err.(*DosError); ok {
			return errResult(de.Code)
		}
		return errResult(ErrAccessDenied)
	}
	return okResult(nil)
}

// findReplyBody packs one drive_proto_find_reply body.
func findReplyBody(props FileProperties, handle uint16, entry uint16) []byte {
	reply := make([]byte, 1+11+2+2+4+2+2)
	reply[0] = props.Attrs
	copy(reply[1:12], props.FCBName[:])
	timePart, datePart := uint16(props.DateTime), uint16(props.DateTime>>16)
	putLittle16(reply[12:14], timePart)
	putLittle16(reply[14:16], datePart)
	putLittle32(reply[16:20], props.Size)
	putLittle16(reply[20:22], handle)
	putLittle16(reply[22:24], entry)
	return reply
}

// handleFindFirst implements FIND_FIRST. A missing directory or a search
// with no matches both report NO_MORE_FILES, matching clients that rely on
// that code (rather than FILE_NOT_FOUND) to detect an empty result.
func handleFindFirst(r request) handlerResult {
	if len(r.body) < 2 {
		return errResult(ErrGeneralFailure)
	}
	attr := r.body[0]
	template := relativePath(r.body[1:])

	dir, filemask := splitLast(template)
	serverDir, exists, err := r.drive.CreateServerPath(dir, false)
	if err != nil || !exists {
		return errResult(ErrNoMoreFiles)
	}
	handle := r.drive.GetHandle(serverDir)

	var nth uint16
	mask := FoldComponent(filemask).AsMask()
	props, found, err := r.drive.FindFile(handle, Name{}, mask, attr, &nth)
	if err != nil || !found {
		return errResult(ErrNoMoreFiles)
	}
	return okResult(findReplyBody(props, handle, nth))
}

// handleFindNext implements FIND_NEXT.
func handleFindNext(r request) handlerResult {
	if len(r.body) != 2+2+1+11 {
		return errResult(ErrGeneralFailure)
	}
	handle := little16(r.body[0:2])
	nth := little16(r.body[2:4])
	attr := r.body[4]
	var mask Mask
	copy(mask[:], r.body[5:16])

	props, found, err := r.drive.FindFile(handle, Name{}, mask, attr, &nth)
	if err != nil || !found {
		return errResult(ErrNoMoreFiles)
	}
	return okResult(findReplyBody(props, handle, nth))
}

// handleSeekFromEnd implements SEEK_FROM_END: translates a negative
// from-end offset into a from-start offset clamped to [0, size].
func handleSeekFromEnd(r request) handlerResult {
	if len(r.body) != 6 {
		return errResult(ErrGeneralFailure)
	}
	offsetLo := little16(r.body[0:2])
	offsetHi := little16(r.body[2:4])
	handle := little16(r.body[4:6])

	offset := int32(offsetHi)<<16 | int32(offsetLo)
	if offset > 0 {
		offset = 0
	}

	size, err := r.drive.fileSize(handle)
	if err != nil {
		return errResult(ErrFileNotFound)
	}
	pos := offset + size
	if pos < 0 {
		pos = 0
	}
	reply := make([]byte, 4)
	putLittle16(reply[0:2], uint16(pos))
	putLittle16(reply[2:4], uint16(pos>>16))
	return okResult(reply)
}

// handleOpen implements OPEN_FILE, CREATE_FILE and EXTENDED_OPEN_CREATE,
// which share a body layout and differ only in existence/creation policy.
func handleOpen(r request, function byte) handlerResult {
	if len(r.body) <= 6 {
		return errResult(ErrGeneralFailure)
	}
	stackAttr := little16(r.body[0:2])
	actionCode := little16(r.body[2:4])
	openMode := little16(r.body[4:6])
	path := relativePath(r.body[6:])

	serverPath, exists, err := r.drive.CreateServerPath(path, false)
	if err != nil {
		return errResult(ErrFileNotFound)
	}
	if !r.drive.parentExists(serverPath) {
		return errResult(ErrPathNotFound)
	}

	var props FileProperties
	var resultMode byte
	var extResultCode uint16
	var failed bool

	switch function {
	case FuncOpenFile:
		resultMode = byte(stackAttr)
		props, err = r.drive.GetDosProperties(path)
		if err != nil || props.Attrs == AttrError || props.Attrs&(AttrVolume|AttrDirectory) != 0 {
			failed = true
		}
	case FuncCreateFile:
		props, err = r.drive.CreateOrTruncateFile(serverPath, byte(stackAttr))
		if err != nil {
			failed = true
		}
		resultMode = 2
	default: // FuncExtendedOpenCreate
		resultMode = byte(openMode & 0x7f)
		existingProps, statErr := r.drive.GetDosProperties(path)
		if statErr != nil || existingProps.Attrs == AttrError {
			if actionCode&ifNotExistMask == actionCreateIfNotExist {
				props, err = r.drive.CreateOrTruncateFile(serverPath, byte(stackAttr))
				if err != nil {
					failed = true
				}
				extResultCode = extOpenResultCreated
			} else {
				failed = true
			}
		} else if existingProps.Attrs&(AttrVolume|AttrDirectory) != 0 {
			failed = true
		} else {
			switch actionCode & ifExistMask {
			case actionOpenIfExist:
				props = existingProps
				extResultCode = extOpenResultOpened
			case actionReplaceIfExist:
				props, err = r.drive.CreateOrTruncateFile(serverPath, byte(stackAttr))
				if err != nil {
					failed = true
				}
				extResultCode = extOpenResultTruncated
			default:
				failed = true
			}
		}
	}

	if !exists && function == FuncOpenFile {
		failed = true
	}
	if failed {
		return errResult(ErrFileNotFound)
	}

	handle := r.drive.GetHandle(serverPath)
	fcbName := FoldComponent(baseName(path))

	reply := make([]byte, 1+11+4+4+2+2+1)
	reply[0] = props.Attrs
	copy(reply[1:12], fcbName[:])
	putLittle32(reply[12:16], props.DateTime)
	putLittle32(reply[16:20], props.Size)
	putLittle16(reply[20:22], handle)
	putLittle16(reply[22:24], extResultCode)
	reply[24] = resultMode
	return okResult(reply)
}

func splitLast(path string) (dir, last string) {
	i := strings.LastIndexByte(path, '/')
	if i < 0 {
		return "", path
	}
	return path[:i], path[i+1:]
}

func baseName(path string) string {
	_, last := splitLast(path)
	return last
}
