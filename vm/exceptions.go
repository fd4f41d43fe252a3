package vm

import (
	"moss/object"
	"moss/rte"
)

// wrapError classifies a plain Go error raised inside a VM-internal
// operation (a primitive Object method, a native function body) into an
// Exception whose Value prototype matches the error's kind. An error that
// is already an *object.Exception (a native function re-raising one it was
// handed) passes through unchanged.
func (vm *VM) wrapError(err error, spot *object.Spot) *object.Exception {
	if exc, ok := err.(*object.Exception); ok {
		return exc
	}
	switch err.(type) {
	case object.TypeMismatchError, object.TypeMismatchUnaryError, object.UnhashableError, ArgcError:
		return vm.newException(rte.ProtoTypeError, err.Error(), spot)
	case object.ValueRangeError, object.FrozenError:
		return vm.newException(rte.ProtoValueError, err.Error(), spot)
	case object.IndexRangeError:
		return vm.newException(rte.ProtoIndexError, err.Error(), spot)
	case OverflowError:
		return vm.newException(rte.ProtoStdException, err.Error(), spot)
	}
	return vm.newException(rte.ProtoStdException, err.Error(), spot)
}

func (vm *VM) newException(protoName, message string, spot *object.Spot) *object.Exception {
	proto := vm.RTE.Proto(protoName)
	val := object.NewTable(proto)
	val.Set("text", object.String(message))
	return &object.Exception{Value: val, Spot: spot}
}

func (vm *VM) typeException(message string, spot *object.Spot) *object.Exception {
	return vm.newException(rte.ProtoTypeError, message, spot)
}

func (vm *VM) valueException(message string, spot *object.Spot) *object.Exception {
	return vm.newException(rte.ProtoValueError, message, spot)
}

func (vm *VM) indexException(message string, spot *object.Spot) *object.Exception {
	return vm.newException(rte.ProtoIndexError, message, spot)
}

func (vm *VM) stdException(message string) *object.Exception {
	return vm.newException(rte.ProtoStdException, message, nil)
}
