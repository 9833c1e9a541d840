package coinselect

const (
	// BaseFee is the fee per transaction weight unit, in nanogrin.
	BaseFee uint64 = 500_000

	// InputWeight is the weight contributed by one input.
	InputWeight = 1
	// OutputWeight is the weight contributed by one output.
	OutputWeight = 21
	// KernelWeight is the weight contributed by one kernel.
	KernelWeight = 3
)

// Fee computes the transaction fee from its weight:
// (inputs*1 + outputs*21 + kernels*3) * BaseFee. A transaction always pays
// for at least one kernel.
func Fee(numInputs, numOutputs, numKernels int) uint64 {
	if numKernels < 1 {
		numKernels = 1
	}
	weight := numInputs*InputWeight + numOutputs*OutputWeight + numKernels*KernelWeight
	return uint64(weight) * BaseFee
}
